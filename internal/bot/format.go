package bot

import (
	"fmt"
	"strings"
	"time"

	"sarabot/internal/store"
)

func startMessage(user store.User) string {
	name := user.FirstName
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(
		"Hi %s! 👋 I'm your reminder assistant.\n\n"+
			"Just tell me things like _\"remind me to call mom tomorrow at 6pm\"_ "+
			"and I'll take care of the rest. Voice notes work too.\n\n"+
			"Type /help to see everything I can do.", name)
}

func helpMessage() string {
	return strings.Join([]string{
		"*What I can do*",
		"",
		"Send me a message (or a voice note) describing a reminder and I'll schedule it.",
		"",
		"/reminders — list your active reminders",
		"/status — your reminder statistics",
		"/done\\_N — mark reminder N as completed",
		"/cancel\\_N — cancel reminder N",
		"/delete\\_N — erase reminder N entirely",
		"/timezone — show or change your timezone",
		"/stop — pause deliveries until your next message",
		"/clear — forget our conversation history",
	}, "\n")
}

func urgencyMark(u store.Urgency) string {
	switch u {
	case store.UrgencyHigh:
		return "🚨"
	case store.UrgencyLow:
		return "💬"
	default:
		return "🔔"
	}
}

func formatList(list []store.Reminder, loc *time.Location) string {
	if len(list) == 0 {
		return "You have no active reminders. Tell me about something you don't want to forget!"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("*Your reminders (%d)*\n", len(list)))
	for _, r := range list {
		b.WriteString(fmt.Sprintf("\n%s *#%d* %s\n🕐 %s",
			urgencyMark(r.Urgency), r.ID, r.Description,
			r.DueAt.In(loc).Format("Mon 02/01 15:04")))
		if r.State == store.StateDelivered {
			b.WriteString(" · delivered")
		}
		b.WriteString(fmt.Sprintf("\n/done\\_%d · /cancel\\_%d\n", r.ID, r.ID))
	}
	return b.String()
}

func formatStats(st store.Stats, scheduled int) string {
	return strings.Join([]string{
		"*Reminder status*",
		"",
		fmt.Sprintf("📋 Total: %d", st.Total),
		fmt.Sprintf("✅ Completed: %d", st.Completed),
		fmt.Sprintf("⏳ Upcoming: %d", st.Upcoming),
		fmt.Sprintf("⚠️ Overdue: %d", st.Overdue),
		"",
		fmt.Sprintf("🕐 Timers armed: %d", scheduled),
	}, "\n")
}

func formatCreated(r store.Reminder, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s Got it! I'll remind you:\n\n*%s*\n🕐 %s",
		urgencyMark(r.Urgency), r.Description, r.DueAt.In(loc).Format("Monday, 02/01 at 15:04")))
	if r.ShortcutURL != "" {
		b.WriteString(fmt.Sprintf("\n\n[Add to device reminders](%s)", r.ShortcutURL))
	}
	b.WriteString(fmt.Sprintf("\n\nCancel anytime with /cancel\\_%d.", r.ID))
	return b.String()
}
