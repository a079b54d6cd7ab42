package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadqualify/internal/leads"
	"leadqualify/internal/storage"
	"leadqualify/pkg"
)

// fakeStrategies gives every strategy a canned answer and lets tests flip
// the classifier outcomes.
type fakeStrategies struct {
	objection bool
	intent    string
}

func (f *fakeStrategies) Engagement(ctx context.Context, utterance string, history []string) (string, error) {
	return "Welcome! What brings you here today?", nil
}
func (f *fakeStrategies) Info(ctx context.Context, utterance string, chunks []string) (string, error) {
	return "info answer", nil
}
func (f *fakeStrategies) Sales(ctx context.Context, utterance, contextText, summary string) (string, error) {
	return "sales pitch", nil
}
func (f *fakeStrategies) Objection(ctx context.Context, utterance, summary string) (string, error) {
	return "objection reply", nil
}
func (f *fakeStrategies) Summarize(ctx context.Context, history []string) (string, error) {
	return "summary", nil
}
func (f *fakeStrategies) ClassifyIntent(ctx context.Context, utterance, summary string) (string, error) {
	if f.intent == "" {
		return pkg.IntentUnknown, nil
	}
	return f.intent, nil
}
func (f *fakeStrategies) ContainsObjection(ctx context.Context, utterance string) (bool, error) {
	return f.objection, nil
}

type fakeRetriever struct {
	chunks []pkg.Chunk
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query, category string) ([]pkg.Chunk, error) {
	return f.chunks, nil
}

type fakeSink struct {
	leads []pkg.Lead
}

func (f *fakeSink) Record(ctx context.Context, lead pkg.Lead) error {
	f.leads = append(f.leads, lead)
	return nil
}

func (f *fakeSink) Log(ctx context.Context, entry leads.LogEntry) error {
	return nil
}

type fixture struct {
	router     *Router
	strategies *fakeStrategies
	retriever  *fakeRetriever
	store      *storage.InMemoryStore
	sink       *fakeSink
}

func newFixture() *fixture {
	strategies := &fakeStrategies{}
	retriever := &fakeRetriever{}
	store := storage.NewInMemoryStore()
	sink := &fakeSink{}
	return &fixture{
		router:     New(strategies, retriever, store, sink),
		strategies: strategies,
		retriever:  retriever,
		store:      store,
		sink:       sink,
	}
}

func (f *fixture) memory(t *testing.T, userID string) (pkg.Memory, []string) {
	t.Helper()
	memory, history, err := f.store.Get(context.Background(), userID)
	require.NoError(t, err)
	return *memory, history
}

func TestFirstTurnGreetingRoutesToEngagement(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	resp, err := f.router.Route(ctx, pkg.TurnRequest{UserID: "u1", Query: "Hi there"})
	require.NoError(t, err)
	assert.Equal(t, "engagement", resp.RoutedAgent)

	memory, history := f.memory(t, "u1")
	assert.Equal(t, "Engagement", memory.Intent)
	assert.Equal(t, "EngagementAgent", memory.LastAgent)
	require.Len(t, history, 2)
	assert.Equal(t, "User: Hi there", history[0])
}

func TestGreetingWinsOverObjectionOnFirstTurn(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.strategies.objection = true

	resp, err := f.router.Route(ctx, pkg.TurnRequest{UserID: "u1", Query: "Hi, that's too expensive"})
	require.NoError(t, err)
	assert.Equal(t, "engagement", resp.RoutedAgent, "turn-one greeting is checked before the objection classifier")
}

func TestObjectionShortcut(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.strategies.objection = true

	resp, err := f.router.Route(ctx, pkg.TurnRequest{
		UserID:  "u1",
		Query:   "that's too expensive",
		History: []string{"User: hi", "Bot: welcome"},
	})
	require.NoError(t, err)
	assert.Equal(t, "objection", resp.RoutedAgent)

	memory, _ := f.memory(t, "u1")
	assert.Equal(t, "Objection", memory.Intent)
	assert.False(t, memory.Qualified)
	assert.Equal(t, "ObjectionAgent", memory.LastAgent)
}

func TestExplicitRequestCallWinsOverDemo(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	resp, err := f.router.Route(ctx, pkg.TurnRequest{
		UserID:  "u1",
		Query:   "can I book a demo or maybe a quick call",
		History: []string{"User: hi", "Bot: welcome"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Call Booking", resp.Intent)
	assert.Equal(t, "CTA", resp.RoutedAgent)
	assert.Equal(t, pkg.ActionContactForm, resp.Action)

	memory, _ := f.memory(t, "u1")
	assert.Equal(t, pkg.StageCollectingCallInfo, memory.Stage)
	assert.True(t, memory.Qualified)
}

func TestPositiveAfterDualOfferAsksForChoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	resp, err := f.router.Route(ctx, pkg.TurnRequest{
		UserID: "u1",
		Query:  "yes",
		History: []string{
			"User: I want to learn more",
			"Bot: Awesome! Would you like to book a demo or speak to our expert team directly?",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Clarify Method", resp.Intent)
	assert.Equal(t, pkg.ActionChooseMethod, resp.Action)

	memory, _ := f.memory(t, "u1")
	assert.Equal(t, pkg.StageAwaitingChoice, memory.Stage)
}

func TestPositiveAfterCallOnlyOfferProceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	resp, err := f.router.Route(ctx, pkg.TurnRequest{
		UserID: "u1",
		Query:  "sure",
		History: []string{
			"User: how do we proceed",
			"Bot: Would a quick call with our team work for you?",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Call Booking", resp.Intent)
	assert.Equal(t, pkg.ActionContactForm, resp.Action)

	memory, _ := f.memory(t, "u1")
	assert.Equal(t, pkg.StageCollectingCallInfo, memory.Stage)
}

func TestUnrelatedQuestionClearsBookingStage(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.strategies.intent = pkg.IntentCold

	require.NoError(t, f.store.Upsert(ctx, "u1",
		pkg.Memory{Intent: "Demo Booking", Qualified: true, LastAgent: "CTA", Stage: pkg.StageCollectingDemoInfo},
		[]string{"User: book a demo", "Bot: Great! I can get that demo scheduled."}))

	resp, err := f.router.Route(ctx, pkg.TurnRequest{
		UserID:  "u1",
		Query:   "what are your office hours",
		History: []string{"User: book a demo", "Bot: Great! I can get that demo scheduled."},
	})
	require.NoError(t, err)
	assert.Equal(t, "neutral", resp.RoutedAgent)

	memory, _ := f.memory(t, "u1")
	assert.Equal(t, pkg.StageIdle, memory.Stage)
	assert.NotEqual(t, "CTA", memory.LastAgent)
}

func TestColdWithContextRoutesToInfo(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.strategies.intent = pkg.IntentCold
	f.retriever.chunks = []pkg.Chunk{{Text: "We secure cloud workloads.", Score: 0.9}}

	resp, err := f.router.Route(ctx, pkg.TurnRequest{
		UserID:  "u1",
		Query:   "do you have a security product",
		History: []string{"User: hi", "Bot: welcome"},
	})
	require.NoError(t, err)

	assert.Equal(t, "info", resp.RoutedAgent)
	assert.Equal(t, pkg.IntentInfoRequest, resp.Intent)

	memory, _ := f.memory(t, "u1")
	assert.Equal(t, pkg.IntentInfoRequest, memory.Intent)
	assert.False(t, memory.Qualified)
}

func TestColdWithoutContextIsNeutral(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.strategies.intent = pkg.IntentCold

	resp, err := f.router.Route(ctx, pkg.TurnRequest{
		UserID:  "u1",
		Query:   "just looking around",
		History: []string{"User: hi", "Bot: welcome"},
	})
	require.NoError(t, err)
	assert.Equal(t, "neutral", resp.RoutedAgent)
	assert.Equal(t, pkg.IntentCold, resp.Intent)
}

func TestInterestedRoutesToSalesAndEmitsLead(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.strategies.intent = pkg.IntentProduct
	f.retriever.chunks = []pkg.Chunk{
		{Text: "SecureTrack enables 95% threat detection.", Score: 0.9},
	}

	resp, err := f.router.Route(ctx, pkg.TurnRequest{
		UserID:  "u1",
		Query:   "tell me about securetrack",
		History: []string{"User: hi", "Bot: welcome"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sales", resp.RoutedAgent)

	memory, _ := f.memory(t, "u1")
	assert.Equal(t, "SecureTrack", memory.Product)
	assert.Empty(t, memory.Service, "a product hit suppresses the service tag")
	assert.True(t, memory.Qualified)
	assert.Equal(t, "SalesAgent", memory.LastAgent)

	require.Len(t, f.sink.leads, 1)
	assert.Equal(t, "SecureTrack", f.sink.leads[0].Product)
	assert.Equal(t, "tell me about securetrack", f.sink.leads[0].LastMessage)
}

func TestInfoRequestIsNotAHotLead(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.strategies.intent = pkg.IntentInfoRequest
	f.retriever.chunks = []pkg.Chunk{{Text: "Our cloud security practice.", Score: 0.8}}

	resp, err := f.router.Route(ctx, pkg.TurnRequest{
		UserID:  "u1",
		Query:   "what services do you offer",
		History: []string{"User: hi", "Bot: welcome"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sales", resp.RoutedAgent)
	assert.Empty(t, f.sink.leads, "an info request must not push a lead")
}

func TestInterestedWithoutContextIsNeutral(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.strategies.intent = pkg.IntentServices

	resp, err := f.router.Route(ctx, pkg.TurnRequest{
		UserID:  "u1",
		Query:   "interested in your services",
		History: []string{"User: hi", "Bot: welcome"},
	})
	require.NoError(t, err)
	assert.Equal(t, "neutral", resp.RoutedAgent)
	assert.Empty(t, f.sink.leads)
}

func TestReadyToEngageEmitsLeadUnconditionally(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.strategies.intent = pkg.IntentReady

	resp, err := f.router.Route(ctx, pkg.TurnRequest{
		UserID:  "u1",
		Query:   "I want to move forward with this",
		History: []string{"User: hi", "Bot: welcome"},
	})
	require.NoError(t, err)

	assert.Equal(t, "cta", resp.RoutedAgent)
	assert.Equal(t, pkg.ActionChooseMethod, resp.Action)
	require.Len(t, f.sink.leads, 1)
	assert.Equal(t, pkg.IntentReady, f.sink.leads[0].Intent)

	memory, _ := f.memory(t, "u1")
	assert.True(t, memory.Qualified)
	assert.Equal(t, "CTA", memory.LastAgent)
}

func TestUnknownIntentFallsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	resp, err := f.router.Route(ctx, pkg.TurnRequest{
		UserID:  "u1",
		Query:   "asdf qwerty",
		History: []string{"User: hi", "Bot: welcome"},
	})
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.RoutedAgent)

	memory, _ := f.memory(t, "u1")
	assert.Equal(t, pkg.IntentUnknown, memory.Intent)
	assert.Equal(t, "FallbackAgent", memory.LastAgent)
}

func TestEveryTurnAppendsExactlyOneExchange(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.strategies.intent = pkg.IntentCold

	history := []string{"User: hi", "Bot: welcome"}
	_, err := f.router.Route(ctx, pkg.TurnRequest{UserID: "u1", Query: "just browsing", History: history})
	require.NoError(t, err)

	_, stored := f.memory(t, "u1")
	require.Len(t, stored, 4)
	assert.Equal(t, "User: just browsing", stored[2])
	assert.Equal(t, "Bot: "+replyColdNeutral, stored[3])
}
