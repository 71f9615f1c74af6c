package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/i474232898/forecast-digest/internal/forecast"
)

func TestTelegramNotify(t *testing.T) {
	var (
		gotPath string
		gotBody map[string]string
		calls   int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramConfig{Token: "123:abc", ChannelID: "@storms", APIBase: srv.URL})

	receipt, err := tg.Notify(context.Background(), "*Monday:* storms possible")

	assert.Equal(t, nil, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, "@storms", gotBody["chat_id"])
	assert.Equal(t, "*Monday:* storms possible", gotBody["text"])
	assert.Equal(t, "Markdown", gotBody["parse_mode"])
	assert.Equal(t, http.StatusOK, receipt.StatusCode)
	assert.Equal(t, int64(42), receipt.MessageID)
}

func TestTelegramNotifyNon2xx(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: can't parse entities"}`))
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramConfig{Token: "t", ChannelID: "c", APIBase: srv.URL})

	_, err := tg.Notify(context.Background(), "*broken")

	var dErr *forecast.DeliveryError
	if !errors.As(err, &dErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	assert.Equal(t, http.StatusBadRequest, dErr.StatusCode)
	assert.Equal(t, `{"ok":false,"description":"Bad Request: can't parse entities"}`, dErr.Snippet)
	assert.Equal(t, 1, calls)
}

func TestTelegramNotifyMissingConfig(t *testing.T) {
	_, err := NewTelegram(TelegramConfig{ChannelID: "c"}).Notify(context.Background(), "x")
	if !errors.Is(err, errNoToken) {
		t.Fatalf("expected errNoToken, got %v", err)
	}

	_, err = NewTelegram(TelegramConfig{Token: "t"}).Notify(context.Background(), "x")
	if !errors.Is(err, errNoChannel) {
		t.Fatalf("expected errNoChannel, got %v", err)
	}
}

func TestTelegramNotifyOKFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":false,"description":"Forbidden: bot is not a member of the channel chat"}`))
	}))
	defer srv.Close()

	tg := NewTelegram(TelegramConfig{Token: "t", ChannelID: "@storms", APIBase: srv.URL})

	receipt, err := tg.Notify(context.Background(), "Monday: quiet")

	var dErr *forecast.DeliveryError
	if !errors.As(err, &dErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	assert.Equal(t, http.StatusOK, dErr.StatusCode)
	assert.Equal(t, "Forbidden: bot is not a member of the channel chat", dErr.Snippet)
	assert.Equal(t, 0, receipt.StatusCode)
}
