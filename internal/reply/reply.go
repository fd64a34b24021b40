// Package reply generates the bot's auto-reply text.
package reply

import (
	"fmt"
	"strings"
)

// Generator maps a sender display name and message text to a reply. Generation
// is pure: no I/O, deterministic, always a non-empty string.
type Generator struct{}

// NewGenerator creates a reply generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns the reply for the given sender and message text.
func (g *Generator) Generate(username, text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	switch {
	case containsAny(lowered, "hello", "hi ", "hey"), lowered == "hi":
		return fmt.Sprintf("Hi %s! Great to hear from you. How can I help?", username)
	case containsAny(lowered, "thank", "thx"):
		return fmt.Sprintf("You're welcome, %s! Happy to help anytime.", username)
	case strings.Contains(lowered, "?"):
		return fmt.Sprintf("Good question, %s! I've passed it along and will get back to you soon.", username)
	default:
		return fmt.Sprintf("Hi %s! Thanks for your message. I've received it and will get back to you soon!", username)
	}
}

func containsAny(text string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(text, sub) {
			return true
		}
	}
	return false
}
