// Package assist turns free-form user text and voice notes into either
// a structured reminder intent or a conversational reply.
package assist

import "context"

// Intent is the interpreter's verdict on one user message. When
// IsReminder is set, Date/Time/Urgency describe the requested reminder;
// otherwise Response carries a conversational answer.
type Intent struct {
	IsReminder  bool   `json:"is_reminder"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"` // YYYY-MM-DD, "today" or "tomorrow"
	Time        string `json:"time,omitempty"` // HH:MM, may be empty
	Urgency     string `json:"urgency,omitempty"`
	Response    string `json:"response,omitempty"`
}

// HistoryEntry is one prior conversation turn passed for context.
type HistoryEntry struct {
	Role    string
	Content string
}

// Interpreter classifies a message into an Intent.
type Interpreter interface {
	Interpret(ctx context.Context, text string, history []HistoryEntry) (Intent, error)
}

// Transcriber converts a voice note into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}
