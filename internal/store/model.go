package store

import "time"

// State is the lifecycle state of a reminder.
//
// Allowed transitions:
//
//	pending   -> delivered | cancelled
//	delivered -> completed | cancelled
//
// completed and cancelled are terminal.
type State string

const (
	StatePending   State = "pending"
	StateDelivered State = "delivered"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateDelivered, StateCompleted, StateCancelled:
		return true
	}
	return false
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// Reminder is a scheduled notification owned by a user. DueAt is always
// stored and compared in UTC.
type Reminder struct {
	ID          int64
	UserID      int64
	ChatID      int64 // denormalized from users at read time
	Description string
	DueAt       time.Time
	Urgency     Urgency
	State       State
	JobHandle   string
	ShortcutURL string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// User is a Telegram account known to the bot.
type User struct {
	ID         int64
	TelegramID int64
	ChatID     int64
	Username   string
	FirstName  string
	Timezone   string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ConversationEntry is one turn of a user's chat history, kept for
// assistant context.
type ConversationEntry struct {
	ID        int64
	UserID    int64
	Role      string
	Content   string
	CreatedAt time.Time
}

// Stats summarizes a user's reminders for /status.
type Stats struct {
	Total     int
	Completed int
	Upcoming  int
	Overdue   int
}
