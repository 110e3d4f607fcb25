package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"texthelper/internal/markdown"
	"texthelper/internal/summarizer"
)

const (
	sendSpinnerInterval = 3 * time.Second

	// Escaping can double the length, so raw text is cut well below
	// Telegram's 4096 characters limit.
	messagePartLength = 2000
)

func (b *Bot) sendTyping(ctx context.Context, chatID int64) {
	config := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := b.sender.Request(ctx, config); err != nil && ctx.Err() == nil {
		b.log.ErrorContext(ctx, "Failed to send chat action",
			"error", err)
	}
}

func (b *Bot) withSpinner(ctx context.Context, chatID int64, fn func() error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		b.sendTyping(ctx, chatID)

		t := time.NewTicker(sendSpinnerInterval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				b.sendTyping(ctx, chatID)
			}
		}
	}()

	return fn()
}

// sendResult sends plain text split into parts that fit a message. The
// keyboard is attached to the last part.
func (b *Bot) sendResult(
	ctx context.Context,
	chatID int64,
	replyTo int,
	header string,
	text string,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) error {
	parts := summarizer.Split(text, messagePartLength)
	if len(parts) == 0 {
		parts = []string{""}
	}

	var errs []error
	for i, part := range parts {
		body := markdown.EscapeV2(part)
		if i == 0 && header != "" {
			body = header + "\n\n" + body
		}

		var kb [][]tgbotapi.InlineKeyboardButton
		if i == len(parts)-1 {
			kb = keyboard
		}

		if _, err := b.replyWithKeyboard(ctx, chatID, replyTo, body, kb); err != nil {
			errs = append(errs, fmt.Errorf("send result part %d: %w", i+1, err))
		}
	}

	return errors.Join(errs...)
}

// sendError renders a failed action inline.
func (b *Bot) sendError(ctx context.Context, chatID int64, replyTo int, cause error) error {
	if _, err := b.replyWithKeyboard(ctx, chatID, replyTo, "❌ "+markdown.EscapeV2(cause.Error()), nil); err != nil {
		return errors.Join(cause, fmt.Errorf("send error message: %w", err))
	}

	return cause
}
