package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	logx "sarabot/pkg/logx"
)

const (
	defaultBaseURL      = "https://api.groq.com/openai/v1"
	defaultChatModel    = "llama-3.3-70b-versatile"
	defaultWhisperModel = "whisper-large-v3"
)

// Client talks to a Groq-compatible OpenAI-style API for intent
// interpretation and voice transcription. The openai-go SDK carries the
// wire format; only the base URL points it at Groq.
type Client struct {
	api          openai.Client
	chatModel    string
	whisperModel string
	log          logx.Logger
	now          func() time.Time
}

type ClientConfig struct {
	APIKey       string
	BaseURL      string
	ChatModel    string
	WhisperModel string
	Timeout      time.Duration
}

func NewClient(cfg ClientConfig, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("assist: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = defaultChatModel
	}
	if cfg.WhisperModel == "" {
		cfg.WhisperModel = defaultWhisperModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	api := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	return &Client{
		api:          api,
		chatModel:    cfg.ChatModel,
		whisperModel: cfg.WhisperModel,
		log:          log,
		now:          time.Now,
	}, nil
}

const intentPrompt = `You are the intent parser of a personal reminder assistant.
Today is %s.

Classify the user's message. Reply with a single JSON object and nothing else.

If the message asks to be reminded of something:
{"is_reminder": true, "description": "<what to remind>", "date": "<YYYY-MM-DD, today or tomorrow>", "time": "<HH:MM or empty when unspecified>", "urgency": "<low, medium or high>"}

Otherwise answer conversationally:
{"is_reminder": false, "response": "<your reply>"}`

// Interpret classifies one message, feeding recent history for context.
func (c *Client) Interpret(ctx context.Context, text string, history []HistoryEntry) (Intent, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	msgs = append(msgs, openai.SystemMessage(
		fmt.Sprintf(intentPrompt, c.now().Format("Monday, 2006-01-02"))))
	for _, h := range history {
		if h.Role == "assistant" {
			msgs = append(msgs, openai.AssistantMessage(h.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(h.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(text))

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.chatModel),
		Messages:    msgs,
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return Intent{}, fmt.Errorf("assist: chat api: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Intent{}, errors.New("assist: chat api returned no choices")
	}

	raw := stripCodeFence(resp.Choices[0].Message.Content)
	var intent Intent
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		// Model ignored the contract; degrade to a plain reply instead
		// of failing the whole message.
		if !c.log.IsZero() {
			c.log.Warn("intent parse failed, treating as chat", logx.Err(err))
		}
		return Intent{IsReminder: false, Response: strings.TrimSpace(raw)}, nil
	}
	return intent, nil
}

// Transcribe sends a voice note to the transcription endpoint.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("assist: empty audio")
	}
	if filename == "" {
		filename = "voice.ogg"
	}

	resp, err := c.api.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), filename, "audio/ogg"),
		Model: openai.AudioModel(c.whisperModel),
	})
	if err != nil {
		return "", fmt.Errorf("assist: transcription api: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// stripCodeFence removes a ```json ... ``` wrapper models sometimes add
// despite the prompt.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
