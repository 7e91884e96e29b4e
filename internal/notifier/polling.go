package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Location is a point shared by a user.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IncomingMessage is a user message received from Telegram.
type IncomingMessage struct {
	ChatID   string
	UserName string
	Text     string
	Location *Location
}

// MessageHandler is called for every incoming message. It sends its own replies.
type MessageHandler func(ctx context.Context, msg IncomingMessage)

// telegramUpdate represents a Telegram update from long polling.
type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From *struct {
			Username  string `json:"username"`
			FirstName string `json:"first_name"`
		} `json:"from"`
		Location *Location `json:"location"`
	} `json:"message"`
}

// StartPolling begins long-polling for messages. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler MessageHandler) {
	offset := 0
	client := &http.Client{Timeout: 35 * time.Second, Transport: t.Client.Transport}

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram polling stopped")
			return
		default:
		}

		updates, err := t.getUpdates(ctx, client, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Warn("polling request failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			if msg, ok := update.toIncoming(); ok {
				t.logger.Info("received message", zap.String("chat_id", msg.ChatID), zap.String("text", msg.Text))
				handler(ctx, msg)
			}
		}
	}
}

func (t *TelegramNotifier) getUpdates(ctx context.Context, client *http.Client, offset int) ([]telegramUpdate, error) {
	apiURL := fmt.Sprintf("%s?offset=%d&timeout=30", t.method("getUpdates"), offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create polling request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read polling response: %w", err)
	}

	var result struct {
		OK          bool             `json:"ok"`
		Description string           `json:"description"`
		Result      []telegramUpdate `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode polling response: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram API error: %s", result.Description)
	}
	return result.Result, nil
}

func (u telegramUpdate) toIncoming() (IncomingMessage, bool) {
	if u.Message == nil {
		return IncomingMessage{}, false
	}
	text := strings.TrimSpace(u.Message.Text)
	if text == "" && u.Message.Location == nil {
		return IncomingMessage{}, false
	}
	msg := IncomingMessage{
		ChatID:   strconv.FormatInt(u.Message.Chat.ID, 10),
		Text:     text,
		Location: u.Message.Location,
	}
	if from := u.Message.From; from != nil {
		msg.UserName = from.Username
		if msg.UserName == "" {
			msg.UserName = from.FirstName
		}
	}
	return msg, true
}
