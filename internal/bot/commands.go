package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sarabot/internal/store"
)

// handleCommand parses "/cmd", "/cmd@BotName" and suffixed forms like
// "/done_12".
func (r *Router) handleCommand(ctx context.Context, user store.User, text string) {
	fields := strings.Fields(text)
	cmd := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	cmd = strings.ToLower(cmd)
	args := strings.Join(fields[1:], " ")

	switch {
	case cmd == "start":
		r.reply(ctx, user, startMessage(user))
	case cmd == "help":
		r.reply(ctx, user, helpMessage())
	case cmd == "reminders":
		r.cmdReminders(ctx, user)
	case cmd == "status":
		r.cmdStatus(ctx, user)
	case cmd == "timezone":
		r.cmdTimezone(ctx, user, args)
	case cmd == "stop":
		r.cmdStop(ctx, user)
	case cmd == "clear":
		r.cmdClear(ctx, user)
	case strings.HasPrefix(cmd, "done_"):
		r.cmdDone(ctx, user, strings.TrimPrefix(cmd, "done_"))
	case strings.HasPrefix(cmd, "cancel_"):
		r.cmdCancel(ctx, user, strings.TrimPrefix(cmd, "cancel_"))
	case strings.HasPrefix(cmd, "delete_"):
		r.cmdDelete(ctx, user, strings.TrimPrefix(cmd, "delete_"))
	default:
		r.reply(ctx, user, "I don't know that command. Try /help.")
	}
}

func (r *Router) cmdReminders(ctx context.Context, user store.User) {
	list, err := r.engine.ListActive(ctx, user.ID)
	if err != nil {
		r.reply(ctx, user, "Couldn't load your reminders right now.")
		return
	}
	r.reply(ctx, user, formatList(list, r.userLocation(user)))
}

func (r *Router) cmdStatus(ctx context.Context, user store.User) {
	stats, err := r.engine.Stats(ctx, user.ID)
	if err != nil {
		r.reply(ctx, user, "Couldn't load your stats right now.")
		return
	}
	r.reply(ctx, user, formatStats(stats, r.engine.ScheduledCount()))
}

// cmdTimezone shows or changes the IANA timezone used to interpret the
// user's dates and times.
func (r *Router) cmdTimezone(ctx context.Context, user store.User, args string) {
	tz := strings.TrimSpace(args)
	if tz == "" {
		cur := user.Timezone
		if cur == "" {
			cur = "UTC"
		}
		r.reply(ctx, user, fmt.Sprintf("Your timezone is *%s*. Change it with e.g. /timezone America/Sao\\_Paulo.", cur))
		return
	}
	if _, err := time.LoadLocation(tz); err != nil {
		r.reply(ctx, user, fmt.Sprintf("I don't know the timezone %q. Use an IANA name like America/Sao\\_Paulo.", tz))
		return
	}
	if err := r.store.SetTimezone(ctx, user.ID, tz); err != nil {
		r.reply(ctx, user, "Couldn't save your timezone right now.")
		return
	}
	r.reply(ctx, user, fmt.Sprintf("🕐 Timezone set to *%s*. New reminders will use it.", tz))
}

// cmdStop pauses deliveries. Any later message reactivates the user, and
// the sweeper then catches up on reminders that came due meanwhile.
func (r *Router) cmdStop(ctx context.Context, user store.User) {
	if err := r.store.DeactivateUser(ctx, user.ID); err != nil {
		r.reply(ctx, user, "Couldn't pause deliveries right now.")
		return
	}
	r.reply(ctx, user, "🔕 Deliveries paused. Message me again any time to resume; missed reminders arrive then.")
}

func (r *Router) cmdClear(ctx context.Context, user store.User) {
	n, err := r.store.ClearConversation(ctx, user.ID)
	if err != nil {
		r.reply(ctx, user, "Couldn't clear the conversation right now.")
		return
	}
	r.reply(ctx, user, fmt.Sprintf("🧹 Forgot %d messages. Fresh start!", n))
}

// ownedReminder resolves the id suffix of /done_N or /cancel_N and
// checks the reminder belongs to the caller.
func (r *Router) ownedReminder(ctx context.Context, user store.User, suffix string) (store.Reminder, bool) {
	id, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || id <= 0 {
		r.reply(ctx, user, "That doesn't look like a reminder number.")
		return store.Reminder{}, false
	}
	rem, err := r.engine.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && rem.UserID != user.ID) {
		r.reply(ctx, user, "I couldn't find that reminder.")
		return store.Reminder{}, false
	}
	if err != nil {
		r.reply(ctx, user, "Couldn't look that up right now.")
		return store.Reminder{}, false
	}
	return rem, true
}

func (r *Router) cmdDone(ctx context.Context, user store.User, suffix string) {
	rem, ok := r.ownedReminder(ctx, user, suffix)
	if !ok {
		return
	}
	err := r.engine.Complete(ctx, rem.ID)
	switch {
	case err == nil:
		r.reply(ctx, user, fmt.Sprintf("✅ Done: %s", rem.Description))
	case errors.Is(err, store.ErrInvalidTransition):
		r.reply(ctx, user, "That reminder isn't waiting to be completed.")
	default:
		r.reply(ctx, user, "Couldn't complete that right now.")
	}
}

func (r *Router) cmdCancel(ctx context.Context, user store.User, suffix string) {
	rem, ok := r.ownedReminder(ctx, user, suffix)
	if !ok {
		return
	}
	err := r.engine.Cancel(ctx, rem.ID)
	switch {
	case err == nil:
		r.reply(ctx, user, fmt.Sprintf("🗑 Cancelled: %s", rem.Description))
	case errors.Is(err, store.ErrInvalidTransition):
		r.reply(ctx, user, "That reminder is already finished.")
	default:
		r.reply(ctx, user, "Couldn't cancel that right now.")
	}
}

// cmdDelete removes the row entirely, unlike cancel which keeps it for
// the history. Works in any state.
func (r *Router) cmdDelete(ctx context.Context, user store.User, suffix string) {
	rem, ok := r.ownedReminder(ctx, user, suffix)
	if !ok {
		return
	}
	if err := r.engine.Delete(ctx, rem.ID); err != nil {
		r.reply(ctx, user, "Couldn't delete that right now.")
		return
	}
	r.reply(ctx, user, fmt.Sprintf("🗑 Deleted: %s", rem.Description))
}
