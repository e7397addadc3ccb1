package config

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Database  DatabaseConfig  `json:"database"`
	Engine    EngineConfig    `json:"engine"`
	Assistant AssistantConfig `json:"assistant"`
	Pprof     PprofConfig     `json:"pprof,omitempty"`
}

// PprofConfig controls the optional profiling/liveness HTTP endpoint.
type PprofConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Addr    string `json:"addr,omitempty"`
	Token   string `json:"token,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// LogChatID, when set, receives mirrored warnings/errors.
	LogChatID int64 `json:"log_chat_id,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
	// BusyTimeout is a Go duration string; 0 keeps the sqlite default.
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// EngineConfig controls the reminder scheduling and recovery engine.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "5m").
//
// Defaults (when fields are omitted/zero):
//   - sweep_interval: "5m"
//   - grace_window: "1m"
//   - past_due_tolerance: "0s" (past-due reminders are accepted)
//   - workers: 2
//   - queue_size: 256
//   - send_rate_per_sec: 3
//   - default_timezone: "UTC"
type EngineConfig struct {
	SweepInterval    string `json:"sweep_interval,omitempty"`
	GraceWindow      string `json:"grace_window,omitempty"`
	PastDueTolerance string `json:"past_due_tolerance,omitempty"`
	Workers          int    `json:"workers,omitempty"`
	QueueSize        int    `json:"queue_size,omitempty"`
	SendRatePerSec   int    `json:"send_rate_per_sec,omitempty"`
	DefaultTimezone  string `json:"default_timezone,omitempty"`
}

// AssistantConfig points at a Groq-compatible OpenAI-style API used for
// transcription and message interpretation.
type AssistantConfig struct {
	APIKey       string `json:"api_key"`
	BaseURL      string `json:"base_url,omitempty"`
	ChatModel    string `json:"chat_model,omitempty"`
	WhisperModel string `json:"whisper_model,omitempty"`
	HistoryLimit int    `json:"history_limit,omitempty"`
	// ShortcutName is the iOS Shortcut invoked by generated reminder links.
	ShortcutName string `json:"shortcut_name,omitempty"`
}
