// Package bot routes incoming chat updates: slash commands go to their
// handlers, everything else flows through the assistant to become a
// reminder or a conversational reply.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sarabot/internal/assist"
	"sarabot/internal/remind"
	"sarabot/internal/runtime/supervisor"
	"sarabot/internal/shortcut"
	"sarabot/internal/store"
	"sarabot/internal/transport"
	logx "sarabot/pkg/logx"
)

type Config struct {
	Workers      int
	QueueSize    int
	HistoryLimit int
	DefaultTZ    string
}

type Router struct {
	cfg Config

	adapter     transport.Adapter
	store       *store.Store
	engine      *remind.Service
	interpreter assist.Interpreter
	transcriber assist.Transcriber
	shortcuts   *shortcut.Builder
	log         logx.Logger

	updates chan transport.Update
	sup     *supervisor.Supervisor
}

func NewRouter(cfg Config, adapter transport.Adapter, st *store.Store, engine *remind.Service,
	interpreter assist.Interpreter, transcriber assist.Transcriber, shortcuts *shortcut.Builder,
	log logx.Logger) *Router {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	return &Router{
		cfg:         cfg,
		adapter:     adapter,
		store:       st,
		engine:      engine,
		interpreter: interpreter,
		transcriber: transcriber,
		shortcuts:   shortcuts,
		log:         log,
		updates:     make(chan transport.Update, cfg.QueueSize),
	}
}

func menuCommands() []transport.BotCommand {
	return []transport.BotCommand{
		{Command: "start", Description: "Introduce the assistant"},
		{Command: "help", Description: "Show how to use it"},
		{Command: "reminders", Description: "List active reminders"},
		{Command: "status", Description: "Reminder statistics"},
		{Command: "timezone", Description: "Show or change your timezone"},
		{Command: "stop", Description: "Pause deliveries"},
		{Command: "clear", Description: "Forget the conversation"},
	}
}

func (r *Router) Start(ctx context.Context) error {
	if err := r.adapter.Start(ctx, r.updates); err != nil {
		return err
	}

	if mu, ok := r.adapter.(transport.CommandMenuUpdater); ok {
		mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := mu.UpdateMenuCommands(mctx, menuCommands()); err != nil && !r.log.IsZero() {
			r.log.Warn("command menu update failed", logx.Err(err))
		}
		cancel()
	}

	r.sup = supervisor.New(ctx, supervisor.WithLogger(r.log))
	for i := 0; i < r.cfg.Workers; i++ {
		r.sup.Go(fmt.Sprintf("update_worker_%d", i), func(ctx context.Context) error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case u, ok := <-r.updates:
					if !ok {
						return nil
					}
					r.handleUpdate(ctx, u)
				}
			}
		})
	}
	return nil
}

func (r *Router) Stop(ctx context.Context) error {
	aerr := r.adapter.Stop(ctx)
	if r.sup != nil {
		r.sup.Cancel()
		if err := r.sup.Wait(ctx); err != nil {
			return err
		}
	}
	return aerr
}

func (r *Router) handleUpdate(ctx context.Context, u transport.Update) {
	if u.Kind != transport.UpdateMessage || u.Message == nil {
		return
	}
	m := u.Message

	user, err := r.store.GetOrCreateUser(ctx, m.FromID, m.ChatID, m.FromUsername, m.FirstName)
	if err != nil {
		if !r.log.IsZero() {
			r.log.Warn("user upsert failed", logx.Int64("from_id", m.FromID), logx.Err(err))
		}
		return
	}

	switch {
	case m.Voice != nil:
		r.handleVoice(ctx, user, m)
	case strings.HasPrefix(m.Text, "/"):
		r.handleCommand(ctx, user, m.Text)
	case strings.TrimSpace(m.Text) != "":
		r.handleText(ctx, user, m.Text)
	}
}

func (r *Router) handleVoice(ctx context.Context, user store.User, m *transport.Message) {
	if r.transcriber == nil {
		r.reply(ctx, user, "Voice notes are not enabled on this bot.")
		return
	}
	audio, err := r.adapter.DownloadFile(ctx, m.Voice.FileID)
	if err != nil {
		if !r.log.IsZero() {
			r.log.Warn("voice download failed", logx.Int64("user_id", user.ID), logx.Err(err))
		}
		r.reply(ctx, user, "I couldn't fetch that voice note, sorry. Try again?")
		return
	}

	text, err := r.transcriber.Transcribe(ctx, audio, "voice.ogg")
	if err != nil || strings.TrimSpace(text) == "" {
		if !r.log.IsZero() {
			r.log.Warn("transcription failed", logx.Int64("user_id", user.ID), logx.Err(err))
		}
		r.reply(ctx, user, "I couldn't make out that voice note. Could you type it instead?")
		return
	}

	r.reply(ctx, user, fmt.Sprintf("🎙 _%s_", text))
	r.handleText(ctx, user, text)
}

func (r *Router) handleText(ctx context.Context, user store.User, text string) {
	if err := r.store.AppendConversation(ctx, user.ID, "user", text); err != nil && !r.log.IsZero() {
		r.log.Warn("conversation append failed", logx.Err(err))
	}

	history, err := r.store.RecentConversation(ctx, user.ID, r.cfg.HistoryLimit)
	if err != nil && !r.log.IsZero() {
		r.log.Warn("conversation read failed", logx.Err(err))
	}
	entries := make([]assist.HistoryEntry, 0, len(history))
	for _, h := range history {
		entries = append(entries, assist.HistoryEntry{Role: h.Role, Content: h.Content})
	}

	intent, err := r.interpreter.Interpret(ctx, text, entries)
	if err != nil {
		if !r.log.IsZero() {
			r.log.Warn("interpret failed", logx.Int64("user_id", user.ID), logx.Err(err))
		}
		r.reply(ctx, user, "I'm having trouble thinking right now. Try again in a moment.")
		return
	}

	var out string
	if intent.IsReminder {
		out = r.createFromIntent(ctx, user, intent)
	} else {
		out = intent.Response
		if strings.TrimSpace(out) == "" {
			out = "Hmm, I didn't catch that. Could you rephrase?"
		}
	}

	if err := r.store.AppendConversation(ctx, user.ID, "assistant", out); err != nil && !r.log.IsZero() {
		r.log.Warn("conversation append failed", logx.Err(err))
	}
	r.reply(ctx, user, out)
}

func (r *Router) createFromIntent(ctx context.Context, user store.User, intent assist.Intent) string {
	loc := r.userLocation(user)
	dueAt, err := assist.ResolveDueTime(intent.Date, intent.Time, loc, time.Now())
	if err != nil {
		return fmt.Sprintf("I understood the reminder but not when: %v. Could you give me a clearer date or time?", err)
	}

	urgency := store.Urgency(strings.ToLower(intent.Urgency))
	if !urgency.Valid() {
		urgency = store.UrgencyMedium
	}

	created, err := r.engine.Create(ctx, remind.CreateInput{
		UserID:      user.ID,
		Description: intent.Description,
		DueAt:       dueAt,
		Urgency:     urgency,
		ShortcutURL: r.shortcuts.URL(dueAt.In(loc), intent.Description, string(urgency)),
	})
	if err != nil {
		if !r.log.IsZero() {
			r.log.Warn("reminder create failed", logx.Int64("user_id", user.ID), logx.Err(err))
		}
		return "Something went wrong saving that reminder. Please try again."
	}

	return formatCreated(created, loc)
}

func (r *Router) userLocation(user store.User) *time.Location {
	tz := user.Timezone
	if tz == "" {
		tz = r.cfg.DefaultTZ
	}
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (r *Router) reply(ctx context.Context, user store.User, text string) {
	_, err := r.adapter.SendText(ctx, transport.ChatTarget{ChatID: user.ChatID}, text, &transport.SendOptions{
		ParseMode:      transport.ParseModeMarkdown,
		DisablePreview: true,
	})
	if err != nil && !r.log.IsZero() {
		r.log.Warn("reply failed", logx.Int64("chat_id", user.ChatID), logx.Err(err))
	}
}
