package usecase

import (
	"strings"

	"crisis-assistant/internal/domain"
)

// declineInstruction is sent in place of the user's message when they turn
// down solutions, so the LLM produces a friendly way to move on.
const declineInstruction = "The user said no to solutions, give a friendly response to move on"

func buildPromptMessages(userText string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildPersonaPrompt()},
		{Role: domain.RoleUser, Content: strings.TrimSpace(userText)},
	}
}

func buildPersonaPrompt() string {
	return strings.Join([]string{
		"You are GAZA 101 - a friendly, compassionate AI assistant.",
		"You're having a normal conversation with a user. Be warm, natural, and engaging.",
		"Use emojis occasionally. Keep responses under 2 sentences for quick chatting.",
	}, "\n")
}
