package agents

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadqualify/internal/cache"
	"leadqualify/internal/llm"
	"leadqualify/pkg"
)

// scriptedGenerator returns canned answers keyed by a prompt substring and
// counts invocations.
type scriptedGenerator struct {
	answers map[string]string
	calls   int
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	g.calls++
	for needle, answer := range g.answers {
		if strings.Contains(prompt, needle) {
			return answer, nil
		}
	}
	return "default answer", nil
}

func newTestAgents(answers map[string]string) (*Agents, *scriptedGenerator) {
	generator := &scriptedGenerator{answers: answers}
	return New(generator, cache.New(cache.NewMemoryBackend(), time.Minute)), generator
}

func TestClassifyIntentNormalizesLabels(t *testing.T) {
	cases := map[string]string{
		"Ready to engage":          pkg.IntentReady,
		"  interested in product ": pkg.IntentProduct,
		`"Cold".`:                  pkg.IntentCold,
		"Greeting":                 pkg.IntentUnknown,
		"":                         pkg.IntentUnknown,
	}
	for raw, want := range cases {
		assert.Equal(t, want, normalizeIntent(raw), "raw answer %q", raw)
	}
}

func TestContainsObjection(t *testing.T) {
	ctx := context.Background()

	a, _ := newTestAgents(map[string]string{"too expensive": "yes"})
	got, err := a.ContainsObjection(ctx, "that is too expensive for us")
	require.NoError(t, err)
	assert.True(t, got)

	a, _ = newTestAgents(map[string]string{"tell me more": "No."})
	got, err = a.ContainsObjection(ctx, "tell me more about BizRadar")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestSalesIsCached(t *testing.T) {
	ctx := context.Background()
	a, generator := newTestAgents(map[string]string{"SecureTrack": "pitch"})

	first, err := a.Sales(ctx, "tell me about SecureTrack", "ctx", "summary")
	require.NoError(t, err)
	second, err := a.Sales(ctx, "tell me about SecureTrack", "ctx", "summary")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, generator.calls, "identical sales turn must reuse the cached pitch")
}

func TestSummarizeEmptyHistorySkipsModel(t *testing.T) {
	a, generator := newTestAgents(nil)

	summary, err := a.Summarize(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, summary)
	assert.Zero(t, generator.calls)
}

func TestEngagementNotCached(t *testing.T) {
	ctx := context.Background()
	a, generator := newTestAgents(nil)

	_, err := a.Engagement(ctx, "hi there", nil)
	require.NoError(t, err)
	_, err = a.Engagement(ctx, "hi there", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, generator.calls)
}
