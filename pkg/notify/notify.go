package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Button is one inline action attached to a message.
type Button struct {
	Label         string
	CallbackToken string
}

// Notifier sends approval prompts. Buttons may be empty for plain messages.
type Notifier interface {
	SendMessage(ctx context.Context, text string, buttons []Button) error
}

// BotNotifier sends messages through a Telegram-compatible bot API.
type BotNotifier struct {
	token      string
	chatID     string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// BotOption configures a BotNotifier.
type BotOption func(*BotNotifier)

// WithBaseURL overrides the bot API base URL.
func WithBaseURL(url string) BotOption {
	return func(n *BotNotifier) {
		n.baseURL = url
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) BotOption {
	return func(n *BotNotifier) {
		n.httpClient = client
	}
}

// NewBotNotifier creates a bot-backed notifier.
func NewBotNotifier(token, chatID string, logger *zap.Logger, opts ...BotOption) (*BotNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if chatID == "" {
		return nil, fmt.Errorf("bot chat id is required")
	}

	n := &BotNotifier{
		token:      token,
		chatID:     chatID,
		baseURL:    "https://api.telegram.org",
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type sendMessageRequest struct {
	ChatID      string `json:"chat_id"`
	Text        string `json:"text"`
	ReplyMarkup *struct {
		InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
	} `json:"reply_markup,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// SendMessage posts a message to the configured chat, one button per row.
func (n *BotNotifier) SendMessage(ctx context.Context, text string, buttons []Button) error {
	reqBody := sendMessageRequest{
		ChatID: n.chatID,
		Text:   text,
	}
	if len(buttons) > 0 {
		keyboard := make([][]inlineButton, 0, len(buttons))
		for _, b := range buttons {
			keyboard = append(keyboard, []inlineButton{{
				Text:         b.Label,
				CallbackData: b.CallbackToken,
			}})
		}
		reqBody.ReplyMarkup = &struct {
			InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
		}{InlineKeyboard: keyboard}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bot API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read bot API response: %w", err)
	}

	var botResp sendMessageResponse
	if err := json.Unmarshal(body, &botResp); err != nil {
		return fmt.Errorf("failed to parse bot API response: %w", err)
	}
	if !botResp.OK {
		return fmt.Errorf("bot API error: %s", botResp.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bot API returned status %d", resp.StatusCode)
	}

	n.logger.Debug("notification sent", zap.Int("buttons", len(buttons)))
	return nil
}

// LogNotifier writes would-be notifications to the log. Used when no bot is
// configured, so dry runs and local use still show the prompts.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendMessage logs the message and its buttons instead of delivering them.
func (n *LogNotifier) SendMessage(_ context.Context, text string, buttons []Button) error {
	fields := []zap.Field{zap.String("text", text)}
	for _, b := range buttons {
		fields = append(fields, zap.String("button:"+b.Label, b.CallbackToken))
	}
	n.logger.Info("notification (no bot configured)", fields...)
	return nil
}
