package storygen

import (
	"strings"
	"unicode/utf8"
)

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn represents a single turn in a conversation.
type Turn struct {
	Role Role
	Text string
}

// DefaultReplayBudget is the default number of runes of prior turns replayed
// into each chat request.
const DefaultReplayBudget = 8000

// ReplayWindow returns the most recent turns whose combined text fits in
// budget runes. Turns are dropped from the front in user/model pairs so the
// window always starts with a user turn. A budget <= 0 disables trimming.
func ReplayWindow(turns []Turn, budget int) []Turn {
	if budget <= 0 || len(turns) == 0 {
		return turns
	}

	total := 0
	for _, t := range turns {
		total += utf8.RuneCountInString(t.Text)
	}

	start := 0
	for total > budget && start < len(turns) {
		total -= utf8.RuneCountInString(turns[start].Text)
		start++
		// keep pairs together
		if start < len(turns) && turns[start].Role == RoleModel {
			total -= utf8.RuneCountInString(turns[start].Text)
			start++
		}
	}
	return turns[start:]
}

// ReplayPrompt flattens a conversation into a single prompt for backends
// without native multi-turn support.
func ReplayPrompt(systemInstruction string, history []Turn, message string) string {
	var b strings.Builder
	if s := strings.TrimSpace(systemInstruction); s != "" {
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	for _, t := range history {
		switch t.Role {
		case RoleUser:
			b.WriteString("User: ")
		default:
			b.WriteString("Assistant: ")
		}
		b.WriteString(t.Text)
		b.WriteString("\n\n")
	}
	b.WriteString("User: ")
	b.WriteString(message)
	b.WriteString("\n\nAssistant:")
	return b.String()
}
