package detect

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// Package detect holds the approximate keyword detectors used by the dialogue
// router. Everything here is pure: lower-cased text in, bool/label out.

// FuzzThreshold is the minimum partial-ratio score (0-100) for a fuzzy hit.
const FuzzThreshold = 85

// maxGreetingWords caps greeting detection so long sentences that merely
// contain "hi" somewhere are not mistaken for greetings.
const maxGreetingWords = 4

var greetingKeywords = []string{
	"hi", "hello", "hey", "greetings", "howdy", "yo",
	"good morning", "good afternoon", "good evening",
	"welcome", "hi there", "hello there", "hey there",
	"how's it going", "what's up",
}

var demoTriggers = []string{
	"book demo", "schedule demo", "demo", "live demo",
	"book a demo", "schedule a demo", "expert team",
}

var callTriggers = []string{
	"quick call", "phone call", "call", "schedule call", "book call",
	"connect me", "connect with", "speak to", "speak with", "talk to",
	"contact", "reach out", "get in touch", "discussion", "consultation",
}

var positiveWords = []string{
	"yes", "sure", "absolutely", "definitely", "ok", "okay",
	"yep", "yeah", "of course", "sounds good", "let's do it",
}

// productKeywords maps typed variants to canonical product names.
var productKeywords = map[string]string{
	"securetrack":  "SecureTrack",
	"secure track": "SecureTrack",
	"bizradar":     "BizRadar",
	"biz radar":    "BizRadar",
}

var serviceKeywords = map[string]string{
	"cloud security":       "Cloud Security",
	"cloud sec":            "Cloud Security",
	"ai security":          "AI Security",
	"ml security":          "AI Security",
	"application security": "Application Security",
	"appsec":               "Application Security",
	"data engineering":     "Data Engineering",
	"cloud engineering":    "Cloud Engineering",
}

// FuzzyContains reports whether any pattern appears in text, either as a
// literal substring or with a partial-ratio score at or above threshold.
func FuzzyContains(text string, patterns []string, threshold int) bool {
	text = strings.ToLower(text)
	for _, pat := range patterns {
		if strings.Contains(text, pat) {
			return true
		}
		if fuzzy.PartialRatio(pat, text) >= threshold {
			return true
		}
	}
	return false
}

// IsDemoRequest reports whether the text explicitly asks for a demo.
func IsDemoRequest(text string) bool {
	return FuzzyContains(text, demoTriggers, FuzzThreshold)
}

// IsCallRequest reports whether the text asks for a call or consultation.
func IsCallRequest(text string) bool {
	return FuzzyContains(text, callTriggers, FuzzThreshold)
}

// IsPositiveResponse reports whether the text is a yes-style confirmation.
func IsPositiveResponse(text string) bool {
	return FuzzyContains(text, positiveWords, FuzzThreshold)
}

// IsGreeting reports whether the text is a short, clear greeting. Messages
// longer than four words never count, whatever they contain.
func IsGreeting(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	words := strings.Fields(normalized)
	if len(words) > maxGreetingWords {
		return false
	}

	for _, kw := range greetingKeywords {
		if normalized == kw {
			return true
		}
		if strings.Contains(normalized, kw) && len(words) <= len(strings.Fields(kw))+1 {
			return true
		}
	}
	return false
}

// bestMatch scans a keyword→label mapping against the corpus. A literal
// substring hit wins immediately; otherwise the highest fuzzy score at or
// above the threshold wins; otherwise "".
func bestMatch(corpus string, mapping map[string]string) string {
	bestLabel := ""
	bestScore := 0
	for kw, label := range mapping {
		if strings.Contains(corpus, kw) {
			return label
		}
		if score := fuzzy.PartialRatio(kw, corpus); score >= FuzzThreshold && score > bestScore {
			bestScore = score
			bestLabel = label
		}
	}
	return bestLabel
}

// DetectInterest scans arbitrary chunks of text for product and service
// mentions. A detected product suppresses the service so a single message is
// never double-tagged.
func DetectInterest(texts ...string) (product, service string) {
	corpus := strings.ToLower(strings.Join(texts, " "))

	product = bestMatch(corpus, productKeywords)
	service = bestMatch(corpus, serviceKeywords)

	if product != "" {
		service = ""
	}
	return product, service
}

// DetectService returns only the canonical service name found in the corpus.
func DetectService(corpus string) string {
	return bestMatch(strings.ToLower(corpus), serviceKeywords)
}
