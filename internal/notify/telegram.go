package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/i474232898/forecast-digest/internal/common"
	"github.com/i474232898/forecast-digest/internal/forecast"
)

const defaultAPIBase = "https://api.telegram.org"

var (
	errNoToken   = errors.New("telegram bot token is not configured")
	errNoChannel = errors.New("telegram channel id is not configured")
)

// TelegramConfig configures the Telegram Bot API client.
type TelegramConfig struct {
	Token     string
	ChannelID string
	// APIBase defaults to https://api.telegram.org.
	APIBase string
	Timeout time.Duration
}

// Telegram sends messages to one channel with Markdown parse mode.
type Telegram struct {
	client    *resty.Client
	token     string
	channelID string
	now       func() time.Time
}

// NewTelegram creates the notifier. The resty client never retries.
func NewTelegram(cfg TelegramConfig) *Telegram {
	base := cfg.APIBase
	if base == "" {
		base = defaultAPIBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(base)
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	client.SetHeader("Content-Type", "application/json")

	return &Telegram{
		client:    client,
		token:     cfg.Token,
		channelID: cfg.ChannelID,
		now:       time.Now,
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Notify posts message exactly once. Transport failures and non-2xx responses
// are returned as *forecast.DeliveryError.
func (t *Telegram) Notify(ctx context.Context, message string) (forecast.Receipt, error) {
	if t.token == "" {
		return forecast.Receipt{}, &forecast.DeliveryError{Err: errNoToken}
	}
	if t.channelID == "" {
		return forecast.Receipt{}, &forecast.DeliveryError{Err: errNoChannel}
	}

	var out sendMessageResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(sendMessageRequest{
			ChatID:    t.channelID,
			Text:      message,
			ParseMode: "Markdown",
		}).
		SetResult(&out).
		SetPathParam("token", t.token).
		Post("/bot{token}/sendMessage")
	if err != nil {
		return forecast.Receipt{}, &forecast.DeliveryError{Err: fmt.Errorf("send message: %w", err)}
	}

	if !resp.IsSuccess() {
		return forecast.Receipt{}, &forecast.DeliveryError{
			StatusCode: resp.StatusCode(),
			Snippet:    common.Snippet(resp.String(), common.SnippetLen),
			Err:        errors.New("telegram rejected the message"),
		}
	}

	// The Bot API reports some rejections in a 2xx body.
	if !out.OK {
		snippet := out.Description
		if snippet == "" {
			snippet = common.Snippet(resp.String(), common.SnippetLen)
		}
		return forecast.Receipt{}, &forecast.DeliveryError{
			StatusCode: resp.StatusCode(),
			Snippet:    snippet,
			Err:        errors.New("telegram rejected the message"),
		}
	}

	return forecast.Receipt{
		StatusCode: resp.StatusCode(),
		MessageID:  out.Result.MessageID,
		SentAt:     t.now().UTC(),
	}, nil
}
