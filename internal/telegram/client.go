// Package telegram is the Telegram Bot API transport for the relay: a small
// HTTP client for getUpdates/sendMessage and a long-poll loop that hands each
// inbound message to the relay on its own goroutine.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/tbourn/go-context-relay/internal/config"
)

// MaxMessageLength is the Bot API limit for one text message, in runes.
const MaxMessageLength = 4096

// Client is a minimal Telegram Bot API client.
type Client struct {
	apiBase    string
	httpClient *http.Client
	send       *rate.Limiter
}

// NewClient creates a client for the bot identified by cfg.Token. Outbound
// messages are paced at cfg.SendRPS. A nil httpClient uses a client without
// its own timeout; calls are bounded by their ctx.
func NewClient(cfg config.TelegramConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	rps := cfg.SendRPS
	if rps <= 0 {
		rps = 20
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		apiBase:    strings.TrimRight(cfg.APIBase, "/") + "/bot" + cfg.Token,
		httpClient: httpClient,
		send:       rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Update is one entry of a getUpdates result.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is an inbound text message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
}

// User is the sender of a message.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

// Chat identifies a conversation.
type Chat struct {
	ID int64 `json:"id"`
}

type response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// APIError is returned when the Bot API answers with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// GetUpdates long-polls for updates starting at offset, waiting up to
// timeoutSec seconds on the server side.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("timeout", strconv.Itoa(timeoutSec))
	params.Set("allowed_updates", `["message"]`)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/getUpdates?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates: build request: %w", err)
	}
	result, err := c.do(req, "getUpdates")
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("telegram getUpdates: parse result: %w", err)
	}
	return updates, nil
}

// SendMessage sends text to chatID, waiting for the send limiter first. Text
// longer than MaxMessageLength is rejected by the API; callers chunk.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := c.send.Wait(ctx); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}

	payload, err := json.Marshal(map[string]any{"chat_id": chatID, "text": text})
	if err != nil {
		return fmt.Errorf("telegram sendMessage: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/sendMessage", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram sendMessage: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req, "sendMessage")
	return err
}

func (c *Client) do(req *http.Request, method string) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: read response: %w", method, err)
	}

	var tg response
	if err := json.Unmarshal(body, &tg); err != nil {
		return nil, fmt.Errorf("telegram %s: parse response (status %d): %w", method, resp.StatusCode, err)
	}
	if !tg.OK {
		code := tg.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return nil, &APIError{Method: method, Code: code, Description: tg.Description}
	}
	return tg.Result, nil
}
