package router

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"leadqualify/internal/detect"
	"leadqualify/internal/leads"
	"leadqualify/internal/retrieval"
	"leadqualify/internal/storage"
	"leadqualify/pkg"
)

// greetingPrefix gates the first-turn engagement shortcut. Checked before
// the objection classifier, so a turn-one message that both greets and
// objects still routes to engagement.
var greetingPrefix = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|greetings|howdy|yo)\b`)

// Canned replies for branches that never reach the language model.
const (
	replyClarifyMethod = "Sure thing! Would you prefer a **live demo** or a **quick call**? _(Demo / Call)_"
	replyColdNeutral   = "Glad to help! Let me know what you're exploring — products, services, or just browsing."
	replyNoContext     = "Tell me a bit more so I can point you to the right solution."
	replyReadyCTA      = "Awesome! Would you like to book a demo or speak to our expert team directly?"
	replyFallback      = "I'm here to help, but need a bit more detail. Could you tell me what you're looking for?"
)

// Strategies is the response-strategy surface the router depends on.
type Strategies interface {
	Engagement(ctx context.Context, utterance string, history []string) (string, error)
	Info(ctx context.Context, utterance string, chunks []string) (string, error)
	Sales(ctx context.Context, utterance, contextText, summary string) (string, error)
	Objection(ctx context.Context, utterance, summary string) (string, error)
	Summarize(ctx context.Context, history []string) (string, error)
	ClassifyIntent(ctx context.Context, utterance, summary string) (string, error)
	ContainsObjection(ctx context.Context, utterance string) (bool, error)
}

// Router drives one conversation turn through a strict priority chain: the
// first matching rule produces the reply, persists exactly one memory
// snapshot, and short-circuits the rest.
type Router struct {
	strategies Strategies
	retriever  retrieval.Retriever
	store      storage.MemoryStore
	sink       leads.Sink
}

// New wires the router to its collaborators.
func New(strategies Strategies, retriever retrieval.Retriever, store storage.MemoryStore, sink leads.Sink) *Router {
	return &Router{
		strategies: strategies,
		retriever:  retriever,
		store:      store,
		sink:       sink,
	}
}

// Route processes one user turn and returns the reply plus routing metadata.
// Any collaborator failure aborts the turn with nothing persisted for it.
func (r *Router) Route(ctx context.Context, req pkg.TurnRequest) (*pkg.TurnResponse, error) {
	// First turn + greeting → engagement.
	if len(req.History) == 0 && greetingPrefix.MatchString(req.Query) {
		return r.routeEngagement(ctx, req)
	}

	// Objection shortcut.
	objection, err := r.strategies.ContainsObjection(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	if objection {
		return r.routeObjection(ctx, req)
	}

	memory, storedHistory, err := r.loadMemory(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	// The latest bot line: in-request transcript first, stored copy second.
	lastBot := ExtractBotLines(req.History, 1)
	if len(lastBot) == 0 {
		lastBot = ExtractBotLines(storedHistory, 1)
	}
	assistantLine := ""
	if len(lastBot) > 0 {
		assistantLine = lastBot[0]
	}

	userText := strings.ToLower(strings.TrimSpace(req.Query))

	explicitDemo := detect.IsDemoRequest(userText)
	explicitCall := detect.IsCallRequest(userText)
	positiveOnly := detect.IsPositiveResponse(userText) && !explicitDemo && !explicitCall

	botOfferedDemo := detect.IsDemoRequest(assistantLine)
	botOfferedCall := detect.IsCallRequest(assistantLine)

	// Explicit demo/call request; a call wins a tie.
	if explicitDemo || explicitCall {
		return r.routeBooking(ctx, req, explicitCall,
			"Great! I can get that %s scheduled. Please fill in the quick form so our team can reach out.")
	}

	// Bare "yes" after the bot offered a CTA.
	if positiveOnly && (botOfferedDemo || botOfferedCall) {
		if botOfferedDemo && botOfferedCall {
			return r.routeClarifyMethod(ctx, req)
		}
		return r.routeBooking(ctx, req, botOfferedCall && !botOfferedDemo,
			"Perfect! Let's lock in that %s. Just fill in the quick form so our team can reach out.")
	}

	// Mid-collection but the utterance looks unrelated → clear the stage and
	// fall through to classification.
	if memory.LastAgent == "CTA" &&
		(memory.Stage == pkg.StageCollectingDemoInfo || memory.Stage == pkg.StageCollectingCallInfo) &&
		looksUnrelated(userText) {
		cleared := pkg.Memory{
			Intent:    "General Inquiry",
			LastAgent: "InfoAgent",
			Stage:     pkg.StageIdle,
		}
		if err := r.store.Upsert(ctx, req.UserID, cleared, req.History); err != nil {
			return nil, err
		}
		log.Info().Str("user_id", req.UserID).Msg("cleared stale booking stage")
	}

	return r.routeByIntent(ctx, req)
}

func (r *Router) routeEngagement(ctx context.Context, req pkg.TurnRequest) (*pkg.TurnResponse, error) {
	response, err := r.strategies.Engagement(ctx, req.Query, req.History)
	if err != nil {
		return nil, err
	}

	memory := pkg.Memory{Intent: "Engagement", LastAgent: "EngagementAgent"}
	if err := r.persist(ctx, req, memory, response); err != nil {
		return nil, err
	}
	return &pkg.TurnResponse{Response: response, RoutedAgent: "engagement"}, nil
}

func (r *Router) routeObjection(ctx context.Context, req pkg.TurnRequest) (*pkg.TurnResponse, error) {
	summary, err := r.strategies.Summarize(ctx, req.History)
	if err != nil {
		return nil, err
	}
	response, err := r.strategies.Objection(ctx, req.Query, summary)
	if err != nil {
		return nil, err
	}

	memory := pkg.Memory{Intent: "Objection", LastAgent: "ObjectionAgent"}
	if err := r.persist(ctx, req, memory, response); err != nil {
		return nil, err
	}
	return &pkg.TurnResponse{Response: response, RoutedAgent: "objection"}, nil
}

// routeBooking handles an accepted or explicit demo/call request and asks
// for the contact form.
func (r *Router) routeBooking(ctx context.Context, req pkg.TurnRequest, isCall bool, replyFormat string) (*pkg.TurnResponse, error) {
	ctaType := "demo"
	intentLabel := "Demo Booking"
	stage := pkg.StageCollectingDemoInfo
	if isCall {
		ctaType = "call"
		intentLabel = "Call Booking"
		stage = pkg.StageCollectingCallInfo
	}

	reply := fmt.Sprintf(replyFormat, ctaType)
	memory := pkg.Memory{
		Intent:    intentLabel,
		Qualified: true,
		LastAgent: "CTA",
		Stage:     stage,
	}
	if err := r.persist(ctx, req, memory, reply); err != nil {
		return nil, err
	}
	return &pkg.TurnResponse{
		Response:    reply,
		Intent:      intentLabel,
		RoutedAgent: "CTA",
		Action:      pkg.ActionContactForm,
	}, nil
}

// routeClarifyMethod fires when the bot offered both a demo and a call and
// the user only said yes.
func (r *Router) routeClarifyMethod(ctx context.Context, req pkg.TurnRequest) (*pkg.TurnResponse, error) {
	memory := pkg.Memory{
		Intent:    "Clarify Method",
		Qualified: true,
		LastAgent: "CTA",
		Stage:     pkg.StageAwaitingChoice,
	}
	if err := r.persist(ctx, req, memory, replyClarifyMethod); err != nil {
		return nil, err
	}
	return &pkg.TurnResponse{
		Response:    replyClarifyMethod,
		Intent:      "Clarify Method",
		RoutedAgent: "CTA",
		Action:      pkg.ActionChooseMethod,
	}, nil
}

// routeByIntent classifies the utterance and dispatches on the label.
func (r *Router) routeByIntent(ctx context.Context, req pkg.TurnRequest) (*pkg.TurnResponse, error) {
	summary, err := r.strategies.Summarize(ctx, req.History)
	if err != nil {
		return nil, err
	}
	intent, err := r.strategies.ClassifyIntent(ctx, req.Query, summary)
	if err != nil {
		return nil, err
	}
	log.Info().Str("intent", intent).Str("user_id", req.UserID).Msg("intent classified")

	switch intent {
	case pkg.IntentCold:
		return r.routeCold(ctx, req)
	case pkg.IntentProduct, pkg.IntentServices, pkg.IntentInfoRequest:
		return r.routeInterested(ctx, req, intent, summary)
	case pkg.IntentReady:
		return r.routeReady(ctx, req, intent)
	default:
		memory := pkg.Memory{Intent: pkg.IntentUnknown, LastAgent: "FallbackAgent"}
		if err := r.persist(ctx, req, memory, replyFallback); err != nil {
			return nil, err
		}
		return &pkg.TurnResponse{Response: replyFallback, RoutedAgent: "fallback"}, nil
	}
}

func (r *Router) routeCold(ctx context.Context, req pkg.TurnRequest) (*pkg.TurnResponse, error) {
	chunks, err := r.retriever.Retrieve(ctx, req.Query, "")
	if err != nil {
		return nil, err
	}

	if len(chunks) > 0 {
		reply, err := r.strategies.Info(ctx, req.Query, chunkTexts(chunks))
		if err != nil {
			return nil, err
		}
		memory := pkg.Memory{Intent: pkg.IntentInfoRequest, LastAgent: "InfoAgent"}
		if err := r.persist(ctx, req, memory, reply); err != nil {
			return nil, err
		}
		return &pkg.TurnResponse{Response: reply, Intent: pkg.IntentInfoRequest, RoutedAgent: "info"}, nil
	}

	memory := pkg.Memory{Intent: pkg.IntentCold, LastAgent: "InfoAgent"}
	if err := r.persist(ctx, req, memory, replyColdNeutral); err != nil {
		return nil, err
	}
	return &pkg.TurnResponse{Response: replyColdNeutral, Intent: pkg.IntentCold, RoutedAgent: "neutral"}, nil
}

func (r *Router) routeInterested(ctx context.Context, req pkg.TurnRequest, intent, summary string) (*pkg.TurnResponse, error) {
	chunks, err := r.retriever.Retrieve(ctx, req.Query, "")
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		log.Warn().Str("user_id", req.UserID).Msg("no retrieval context found")
		memory := pkg.Memory{Intent: intent, LastAgent: "InfoAgent"}
		if err := r.persist(ctx, req, memory, replyNoContext); err != nil {
			return nil, err
		}
		return &pkg.TurnResponse{Response: replyNoContext, Intent: intent, RoutedAgent: "neutral"}, nil
	}

	contextText := strings.Join(chunkTexts(chunks), "\n\n")
	reply, err := r.strategies.Sales(ctx, req.Query, contextText, summary)
	if err != nil {
		return nil, err
	}

	product, _ := detect.DetectInterest(contextText)
	service := detect.DetectService(contextText)

	memory := pkg.Memory{
		Intent:    intent,
		Product:   product,
		Service:   service,
		Qualified: true,
		LastAgent: "SalesAgent",
	}
	if err := r.persist(ctx, req, memory, reply); err != nil {
		return nil, err
	}

	if isHotLead(intent) {
		lead := pkg.Lead{
			UserID:      req.UserID,
			Intent:      intent,
			Product:     product,
			Service:     service,
			Qualified:   true,
			LastMessage: req.Query,
		}
		if err := r.sink.Record(ctx, lead); err != nil {
			return nil, err
		}
	}

	return &pkg.TurnResponse{Response: reply, Intent: intent, RoutedAgent: "sales"}, nil
}

func (r *Router) routeReady(ctx context.Context, req pkg.TurnRequest, intent string) (*pkg.TurnResponse, error) {
	memory := pkg.Memory{Intent: intent, Qualified: true, LastAgent: "CTA"}
	if err := r.persist(ctx, req, memory, replyReadyCTA); err != nil {
		return nil, err
	}

	lead := pkg.Lead{
		UserID:      req.UserID,
		Intent:      intent,
		Qualified:   true,
		LastMessage: req.Query,
	}
	if err := r.sink.Record(ctx, lead); err != nil {
		return nil, err
	}

	return &pkg.TurnResponse{
		Response:    replyReadyCTA,
		Intent:      intent,
		RoutedAgent: "cta",
		Action:      pkg.ActionChooseMethod,
	}, nil
}

// persist writes the turn outcome: memory snapshot plus the transcript with
// this exchange appended.
func (r *Router) persist(ctx context.Context, req pkg.TurnRequest, memory pkg.Memory, reply string) error {
	history := BuildUpdatedHistory(req.History, req.Query, reply)
	return r.store.Upsert(ctx, req.UserID, memory, history)
}

func (r *Router) loadMemory(ctx context.Context, userID string) (pkg.Memory, []string, error) {
	memory, history, err := r.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return pkg.Memory{}, nil, nil
		}
		return pkg.Memory{}, nil, err
	}
	return *memory, history, nil
}

// looksUnrelated is the heuristic for "the user changed the subject while we
// were collecting booking details": a WH-question start or anything longer
// than five tokens.
func looksUnrelated(userText string) bool {
	words := strings.Fields(userText)
	if len(words) == 0 {
		return false
	}
	switch words[0] {
	case "what", "where", "how", "why", "when", "who":
		return true
	}
	return len(words) > 5
}

// isHotLead reports whether an intent is strong enough to push to the CRM
// without waiting for a form submission.
func isHotLead(intent string) bool {
	switch intent {
	case pkg.IntentProduct, pkg.IntentServices, pkg.IntentReady:
		return true
	}
	return false
}

func chunkTexts(chunks []pkg.Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}
