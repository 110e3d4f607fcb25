// Package ratelimiter serializes outbound Telegram calls and keeps at most
// one call per chat inside the chat's rate window.
package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second
	queueSize       = 1000
)

// API is the part of *tgbotapi.BotAPI the limiter needs.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type request struct {
	message  tgbotapi.Chattable
	raw      bool
	response chan response
}

type response struct {
	message tgbotapi.Message
	api     *tgbotapi.APIResponse
	err     error
}

type RateLimiter struct {
	api      API
	queue    chan request
	lastSent map[int64]time.Time
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	now      func() time.Time
	log      *slog.Logger
}

func New(api API, log *slog.Logger) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		api:      api,
		queue:    make(chan request, queueSize),
		lastSent: make(map[int64]time.Time),
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
		log:      log,
	}

	go rl.processQueue()

	return rl
}

// Send queues a message and waits for Telegram's answer.
func (rl *RateLimiter) Send(
	ctx context.Context,
	message tgbotapi.Chattable,
) (tgbotapi.Message, error) {
	resp, err := rl.enqueue(ctx, request{message: message})

	return resp.message, err
}

// Request queues a call whose result is not a message, such as deleting a
// message or replacing a keyboard.
func (rl *RateLimiter) Request(
	ctx context.Context,
	c tgbotapi.Chattable,
) (*tgbotapi.APIResponse, error) {
	resp, err := rl.enqueue(ctx, request{message: c, raw: true})

	return resp.api, err
}

// Answer bypasses the queue. Callback answers do not post into the chat.
func (rl *RateLimiter) Answer(c tgbotapi.CallbackConfig) error {
	_, err := rl.api.Request(c)

	return err
}

func (rl *RateLimiter) Stop() {
	rl.cancel()
}

func (rl *RateLimiter) enqueue(ctx context.Context, req request) (response, error) {
	req.response = make(chan response, 1)

	select {
	case rl.queue <- req:
	case <-ctx.Done():
		return response{}, ctx.Err()
	case <-rl.ctx.Done():
		return response{}, rl.ctx.Err()
	}

	select {
	case resp := <-req.response:
		return resp, resp.err
	case <-ctx.Done():
		return response{}, ctx.Err()
	case <-rl.ctx.Done():
		return response{}, rl.ctx.Err()
	}
}

func (rl *RateLimiter) processQueue() {
	for {
		select {
		case req := <-rl.queue:
			rl.handleRequest(req)
		case <-rl.ctx.Done():
			for {
				select {
				case req := <-rl.queue:
					req.response <- response{err: rl.ctx.Err()}
				default:
					return
				}
			}
		}
	}
}

func (rl *RateLimiter) handleRequest(req request) {
	chatID := getChatID(req.message)

	rl.mu.Lock()
	lastSent, exists := rl.lastSent[chatID]
	rl.mu.Unlock()

	if exists {
		delay := getDelay(chatID, lastSent, rl.now())

		if delay > 0 {
			rl.log.DebugContext(rl.ctx, "Rate limiting message",
				"chatID", chatID,
				"delay", delay,
				"chattableType", fmt.Sprintf("%T", req.message),
				"queueLen", len(rl.queue))

			select {
			case <-time.After(delay):
			case <-rl.ctx.Done():
				req.response <- response{err: rl.ctx.Err()}

				return
			}
		}
	}

	var resp response
	if req.raw {
		resp.api, resp.err = rl.api.Request(req.message)
	} else {
		resp.message, resp.err = rl.api.Send(req.message)
	}

	if resp.err != nil {
		rl.log.WarnContext(rl.ctx, "Telegram call failed",
			"error", resp.err,
			"chatID", chatID,
			"chattableType", fmt.Sprintf("%T", req.message))
	}

	rl.mu.Lock()
	rl.lastSent[chatID] = rl.now()
	rl.mu.Unlock()

	req.response <- resp
}

func getChatID(message tgbotapi.Chattable) int64 {
	switch m := message.(type) {
	case tgbotapi.MessageConfig:
		return m.ChatID
	case tgbotapi.EditMessageTextConfig:
		return m.ChatID
	case tgbotapi.EditMessageReplyMarkupConfig:
		return m.ChatID
	case tgbotapi.DeleteMessageConfig:
		return m.ChatID
	case tgbotapi.ChatActionConfig:
		return m.ChatID
	default:
		return 0
	}
}

func getDelay(
	chatID int64,
	lastSent time.Time,
	now time.Time,
) time.Duration {
	elapsed := now.Sub(lastSent)
	rate := getRate(chatID)

	return max(rate-elapsed, 0)
}

func getRate(chatID int64) time.Duration {
	if chatID < 0 {
		return groupChatRate
	}

	return privateChatRate
}
