package domain

import "time"

// DialogueState is the per-session memory of the assistant: the topic whose
// problem was last presented, awaiting a yes/no on solutions.
type DialogueState struct {
	SessionID string
	LastTopic Topic
	Turns     int
	UpdatedAt time.Time
}

// NewDialogueState returns the Idle state for a session.
func NewDialogueState(sessionID string) DialogueState {
	return DialogueState{SessionID: sessionID}
}

// Awaiting reports whether a topic is pending a solutions decision.
func (s DialogueState) Awaiting() bool {
	return s.LastTopic != TopicNone
}

// Remember moves the state to AwaitingSolutionDecision(t).
func (s *DialogueState) Remember(t Topic) {
	s.LastTopic = t
}

// Forget moves the state back to Idle.
func (s *DialogueState) Forget() {
	s.LastTopic = TopicNone
}
