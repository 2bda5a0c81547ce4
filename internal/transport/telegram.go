package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTelegramAPIURL = "https://api.telegram.org"

// ErrBotTokenNotConfigured is returned for every send when no bot token is set.
var ErrBotTokenNotConfigured = errors.New("telegram bot token not configured")

// HTTPStatusError captures non-2xx responses from the Bot API.
type HTTPStatusError struct {
	StatusCode  int
	Description string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("telegram: unexpected status %d: %s", e.StatusCode, e.Description)
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// TelegramSender calls the Bot API sendMessage method.
type TelegramSender struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

type TelegramOption func(*TelegramSender)

func WithTelegramBaseURL(baseURL string) TelegramOption {
	return func(s *TelegramSender) {
		s.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithTelegramHTTPClient(c *http.Client) TelegramOption {
	return func(s *TelegramSender) {
		s.httpClient = c
	}
}

func NewTelegramSender(token string, log *zap.Logger, opts ...TelegramOption) *TelegramSender {
	if log == nil {
		log = zap.NewNop()
	}
	s := &TelegramSender{
		token:      strings.TrimSpace(token),
		baseURL:    defaultTelegramAPIURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.baseURL == "" {
		s.baseURL = defaultTelegramAPIURL
	}
	return s
}

func (s *TelegramSender) SendDirectMessage(ctx context.Context, handle, text string) error {
	if s.token == "" {
		s.logger.Warn("telegram bot token not configured, message dropped", zap.String("chat_id", handle))
		return ErrBotTokenNotConfigured
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: handle, Text: text})
	if err != nil {
		return fmt.Errorf("telegram: marshal request: %w", err)
	}

	endpoint := s.baseURL + "/bot" + s.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.httpClient.Do(req)
	if err != nil {
		// the request URL embeds the token; keep it out of the error text
		return fmt.Errorf("telegram: request failed: %w", redactURLError(err))
	}
	defer func() { _ = res.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var payload apiResponse
		_ = json.Unmarshal(raw, &payload)
		description := payload.Description
		if description == "" {
			description = strings.TrimSpace(string(raw))
		}
		return &HTTPStatusError{StatusCode: res.StatusCode, Description: description}
	}

	s.logger.Debug("telegram message sent", zap.String("chat_id", handle))
	return nil
}

func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}

var _ DirectMessageSender = (*TelegramSender)(nil)
