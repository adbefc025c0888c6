package domain

// IntentKind enumerates the classifier outcomes.
type IntentKind int

const (
	IntentFallback IntentKind = iota
	IntentEmpty
	IntentConversational
	IntentTopic
	IntentAffirm
	IntentDecline
)

var intentNames = map[IntentKind]string{
	IntentFallback:       "fallback",
	IntentEmpty:          "empty",
	IntentConversational: "conversational",
	IntentTopic:          "topic",
	IntentAffirm:         "affirm",
	IntentDecline:        "decline",
}

func (k IntentKind) String() string {
	if name, ok := intentNames[k]; ok {
		return name
	}
	return "unknown"
}

// Intent is the result of classifying one user message. Topic is set only
// when Kind is IntentTopic.
type Intent struct {
	Kind  IntentKind
	Topic Topic
}
