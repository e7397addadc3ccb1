package remind

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sarabot/internal/eventbus"
	"sarabot/internal/store"
	"sarabot/internal/transport"
	logx "sarabot/pkg/logx"
)

// Sender is the slice of the transport adapter the dispatcher needs.
type Sender interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error)
}

// Dispatcher delivers due reminders. The order is send first, mark
// delivered second: a failed send leaves the row pending so the sweeper
// retries it; a failed mark after a successful send at worst produces a
// duplicate message on the next sweep.
type Dispatcher struct {
	store   *store.Store
	sender  Sender
	bus     eventbus.Bus
	limiter *rate.Limiter
	log     logx.Logger
}

type DispatcherConfig struct {
	// SendRatePerSec caps outbound messages. Telegram throttles bots
	// around 30 msg/s globally; staying well under avoids 429s.
	SendRatePerSec float64
}

func NewDispatcher(cfg DispatcherConfig, st *store.Store, sender Sender, bus eventbus.Bus, log logx.Logger) *Dispatcher {
	rps := cfg.SendRatePerSec
	if rps <= 0 {
		rps = 3
	}
	return &Dispatcher{
		store:   st,
		sender:  sender,
		bus:     bus,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		log:     log,
	}
}

// Dispatch sends the reminder and marks it delivered. Returning an
// error means the reminder is still pending and will be retried by the
// sweeper.
func (d *Dispatcher) Dispatch(ctx context.Context, r store.Reminder) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	text := FormatDelivery(r)
	_, err := d.sender.SendText(ctx, transport.ChatTarget{ChatID: r.ChatID}, text, &transport.SendOptions{
		ParseMode:      transport.ParseModeMarkdown,
		DisablePreview: true,
	})
	if err != nil {
		if !d.log.IsZero() {
			d.log.Warn("reminder send failed; will retry",
				logx.Int64("id", r.ID), logx.Int64("chat_id", r.ChatID), logx.Err(err))
		}
		return err
	}

	err = d.store.MarkDelivered(ctx, r.ID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrAlreadyDelivered):
		// A concurrent dispatch won the CAS; the user got the message.
		if !d.log.IsZero() {
			d.log.Debug("reminder already delivered", logx.Int64("id", r.ID))
		}
		return nil
	case errors.Is(err, store.ErrInvalidTransition):
		// Cancelled between send and mark. Cancellation wins the row;
		// the message was already out the door.
		if !d.log.IsZero() {
			d.log.Debug("reminder cancelled during delivery", logx.Int64("id", r.ID))
		}
		return nil
	case errors.Is(err, store.ErrNotFound):
		if !d.log.IsZero() {
			d.log.Warn("delivered reminder vanished from store", logx.Int64("id", r.ID))
		}
		return nil
	default:
		return err
	}

	if !d.log.IsZero() {
		d.log.Info("reminder delivered",
			logx.Int64("id", r.ID), logx.Int64("chat_id", r.ChatID),
			logx.Duration("late_by", time.Since(r.DueAt)))
	}
	if d.bus != nil {
		d.bus.Publish(eventbus.Event{
			Type: eventbus.EventReminderDelivered,
			Time: time.Now(),
			Data: map[string]any{"id": r.ID, "user_id": r.UserID},
		})
	}
	return nil
}

// FormatDelivery renders the reminder message. Urgent reminders get a
// louder marker; the Shortcuts deep link rides along when present.
func FormatDelivery(r store.Reminder) string {
	var b strings.Builder
	switch r.Urgency {
	case store.UrgencyHigh:
		b.WriteString("🚨 *Reminder!*\n\n")
	case store.UrgencyLow:
		b.WriteString("💬 *Reminder*\n\n")
	default:
		b.WriteString("🔔 *Reminder*\n\n")
	}
	b.WriteString(r.Description)
	b.WriteString(fmt.Sprintf("\n\n🕐 %s", r.DueAt.Format("02/01/2006 15:04")))
	if r.ShortcutURL != "" {
		b.WriteString(fmt.Sprintf("\n\n[Add to device reminders](%s)", r.ShortcutURL))
	}
	b.WriteString(fmt.Sprintf("\n\nReply /done\\_%d when finished or /cancel\\_%d to dismiss.", r.ID, r.ID))
	return b.String()
}
