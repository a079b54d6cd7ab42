package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"leadqualify/internal/cache"
	"leadqualify/internal/llm"
	"leadqualify/pkg"
)

// Agents bundles the response strategies. Each strategy turns one user
// utterance plus optional context into text; none of them routes or persists
// state. Sales, objection, and the two classifiers go through the response
// cache keyed on their fully rendered prompt.
type Agents struct {
	generator llm.Generator
	cache     *cache.Cache
}

// New wires the strategies to a generator and a response cache.
func New(generator llm.Generator, responseCache *cache.Cache) *Agents {
	return &Agents{generator: generator, cache: responseCache}
}

// Engagement greets a first-time visitor. Not cached: greetings should feel
// fresh per conversation.
func (a *Agents) Engagement(ctx context.Context, utterance string, history []string) (string, error) {
	prompt := fmt.Sprintf("%s\n\nuser_message: %s\nchat_history: %s\nAI:",
		engagementPrompt, utterance, strings.Join(history, "\n"))
	return a.generator.Generate(ctx, prompt)
}

// Info answers a factual question grounded in the retrieved chunks. Runs
// with a short completion budget and low temperature.
func (a *Agents) Info(ctx context.Context, utterance string, chunks []string) (string, error) {
	prompt := fmt.Sprintf("%s\n\nContext:\n%s\n\nUser: %s\nAnswer:",
		infoPrompt, strings.Join(chunks, "\n\n"), utterance)
	return a.generator.Generate(ctx, prompt, llm.WithMaxTokens(120), llm.WithTemperature(0.4))
}

// Sales pitches against the retrieved context and conversation summary.
func (a *Agents) Sales(ctx context.Context, utterance, contextText, summary string) (string, error) {
	prompt := fmt.Sprintf("%s\n\nUser message: %s\n\nContext:\n%s\n\nChat History:\n%s\n\nSales Agent:",
		salesPrompt, utterance, contextText, summary)
	return a.cached(ctx, "sales", prompt)
}

// Objection addresses a concern in the utterance, with the conversation
// summary as context.
func (a *Agents) Objection(ctx context.Context, utterance, summary string) (string, error) {
	prompt := fmt.Sprintf("%s\n\nUser Objection: %s\n\nContext (if needed):\n%s\n\nYour Response:",
		objectionPrompt, utterance, summary)
	return a.cached(ctx, "objection", prompt)
}

// Summarize condenses the transcript for use as classifier and strategy
// context. An empty transcript summarizes to "".
func (a *Agents) Summarize(ctx context.Context, history []string) (string, error) {
	if len(history) == 0 {
		return "", nil
	}
	prompt := fmt.Sprintf("%s\n\n%s\n\nSummary:", summaryPrompt, strings.Join(history, "\n"))
	return a.generator.Generate(ctx, prompt, llm.WithMaxTokens(150), llm.WithTemperature(0.3))
}

// ClassifyIntent labels the utterance against the closed intent set. Any
// answer outside the set maps to IntentUnknown.
func (a *Agents) ClassifyIntent(ctx context.Context, utterance, summary string) (string, error) {
	prompt := fmt.Sprintf("%s\n\nUser: %s\nHistory: %s\n→", intentPrompt, utterance, summary)
	raw, err := a.cached(ctx, "intent", prompt)
	if err != nil {
		return "", err
	}
	return normalizeIntent(raw), nil
}

// ContainsObjection reports whether the utterance raises an objection.
// Anything other than a clear "yes" counts as no.
func (a *Agents) ContainsObjection(ctx context.Context, utterance string) (bool, error) {
	prompt := fmt.Sprintf("%s\n\nMessage: %s\nAnswer:", objectionCheckPrompt, utterance)
	raw, err := a.cached(ctx, "objection_check", prompt)
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.Trim(strings.TrimSpace(raw), `."'`))
	return answer == "yes", nil
}

// cached runs the prompt through the response cache, generating on a miss.
func (a *Agents) cached(ctx context.Context, strategy, prompt string) (string, error) {
	response, source, elapsed, err := a.cache.CachedCall(ctx, prompt, func(ctx context.Context, prompt string) (string, error) {
		return a.generator.Generate(ctx, prompt)
	})
	if err != nil {
		return "", fmt.Errorf("%s strategy failed: %w", strategy, err)
	}
	log.Info().
		Str("strategy", strategy).
		Str("source", string(source)).
		Dur("elapsed", elapsed).
		Msg("strategy response")
	return response, nil
}

// normalizeIntent maps a raw classifier answer onto the closed label set.
func normalizeIntent(raw string) string {
	cleaned := strings.Trim(strings.TrimSpace(raw), `."'`)
	for _, label := range []string{
		pkg.IntentCold,
		pkg.IntentProduct,
		pkg.IntentServices,
		pkg.IntentInfoRequest,
		pkg.IntentReady,
	} {
		if strings.EqualFold(cleaned, label) {
			return label
		}
	}
	return pkg.IntentUnknown
}
