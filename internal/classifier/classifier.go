// Package classifier maps a raw user message to an Intent with fixed keyword
// vocabularies. Classification is pure: the caller owns the dialogue state and
// applies any transition.
package classifier

import (
	"strings"

	"crisis-assistant/internal/domain"
)

// Mode selects which rules are active.
type Mode int

const (
	// RuleBased never yields IntentConversational.
	RuleBased Mode = iota
	// Hybrid routes small talk and short messages to IntentConversational so
	// they can be answered by the LLM.
	Hybrid
)

func (m Mode) String() string {
	if m == Hybrid {
		return "hybrid"
	}
	return "rule_based"
}

const maxConversationalTokens = 3

type topicKeywords struct {
	topic    domain.Topic
	keywords []string
}

// Keyword sets are scanned in this order; the first set with a match wins.
var topicSets = []topicKeywords{
	{domain.TopicWater, []string{"water", "drink", "thirst"}},
	{domain.TopicFood, []string{"food", "hunger", "nutrition"}},
	{domain.TopicHealth, []string{"health", "medical", "hospital", "doctor"}},
	{domain.TopicCO2, []string{"co2", "carbon", "emission", "environment", "pollution"}},
	{domain.TopicEnergy, []string{"energy", "power", "solar", "electric"}},
	{domain.TopicInfrastructure, []string{"infrastructure", "building", "construction", "road", "shelter", "house"}},
}

var (
	affirmWords  = []string{"yes", "yeah", "sure", "please", "solution", "yes please"}
	declineWords = []string{"no", "not now", "later", "maybe later"}

	bareGreetings = []string{"hi", "hello", "hey"}

	smallTalkPhrases = []string{
		"how are you", "how are you doing", "can we talk", "let's talk",
		"talk to you", "what can you do", "thank you", "thanks",
		"who are you", "what are you", "joke", "funny", "hello",
		"hi", "hey", "greetings", "how do you feel", "what's up",
		"good morning", "good afternoon", "good evening", "how old are you",
		"where are you from", "are you human", "do you sleep",
	}
)

// Classify returns the intent of input given the session's dialogue state.
// Rules apply in priority order and the first match wins: empty, small talk
// (Hybrid only), topic, affirm, decline, fallback.
func Classify(input string, state domain.DialogueState, mode Mode) domain.Intent {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return domain.Intent{Kind: domain.IntentEmpty}
	}

	lower := strings.ToLower(input)

	if mode == Hybrid && IsConversational(trimmed) {
		return domain.Intent{Kind: domain.IntentConversational}
	}

	if topic := DetectTopic(lower); topic != domain.TopicNone {
		return domain.Intent{Kind: domain.IntentTopic, Topic: topic}
	}

	if state.Awaiting() && containsAny(lower, affirmWords) {
		return domain.Intent{Kind: domain.IntentAffirm}
	}
	if state.Awaiting() && containsAny(lower, declineWords) {
		return domain.Intent{Kind: domain.IntentDecline}
	}
	return domain.Intent{Kind: domain.IntentFallback}
}

// DetectTopic returns the first topic with a keyword contained in input, or
// TopicNone. Matching is case-insensitive and by substring.
func DetectTopic(input string) domain.Topic {
	lower := strings.ToLower(input)
	for _, set := range topicSets {
		if containsAny(lower, set.keywords) {
			return set.topic
		}
	}
	return domain.TopicNone
}

// IsConversational reports whether input reads as small talk rather than a
// technical query.
func IsConversational(input string) bool {
	lower := strings.ToLower(strings.TrimSpace(input))
	for _, g := range bareGreetings {
		if lower == g {
			return true
		}
	}
	if containsAny(lower, smallTalkPhrases) {
		return true
	}
	return len(strings.Fields(lower)) <= maxConversationalTokens
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
