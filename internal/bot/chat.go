package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"texthelper/internal/markdown"
)

const (
	historyContextSize = 20
	streamEditInterval = 1500 * time.Millisecond
	streamPlaceholder  = "…"
)

// handleChat streams the model answer into a single message that is edited
// as fragments arrive.
func (b *Bot) handleChat(ctx context.Context, chatID int64, messageID int, input string) error {
	history, err := b.db.ListMessages(ctx, chatID, historyContextSize)
	if err != nil {
		b.log.WarnContext(ctx, "Failed to list messages",
			"error", err,
			"chatID", chatID)
	}

	stream, err := b.actions.Chat(ctx, chatID, history, input)
	if err != nil {
		return b.sendError(ctx, chatID, messageID, err)
	}
	defer stream.Close()

	b.appendHistory(ctx, chatID, input, true)

	reply, err := b.replyWithKeyboard(ctx, chatID, messageID, markdown.EscapeV2(streamPlaceholder), nil)
	if err != nil {
		return fmt.Errorf("send placeholder: %w", err)
	}

	var (
		answer   strings.Builder
		shown    string
		lastEdit time.Time
	)

	for stream.Next() {
		answer.WriteString(stream.Current())

		if time.Since(lastEdit) < streamEditInterval {
			continue
		}

		shown = b.editStreamed(ctx, chatID, reply.MessageID, answer.String()+" "+streamPlaceholder, shown)
		lastEdit = time.Now()
	}

	if err = stream.Err(); err != nil {
		if deleteErr := b.deleteMessage(ctx, chatID, reply.MessageID); deleteErr != nil {
			b.log.WarnContext(ctx, "Failed to delete placeholder",
				"error", deleteErr,
				"chatID", chatID)
		}

		return b.sendError(ctx, chatID, messageID, err)
	}

	text := strings.TrimSpace(answer.String())
	if text == "" {
		text = "✖️ Empty answer."
	}

	b.appendHistory(ctx, chatID, text, false)

	if len([]rune(text)) > messagePartLength {
		if err = b.deleteMessage(ctx, chatID, reply.MessageID); err != nil {
			b.log.WarnContext(ctx, "Failed to delete placeholder",
				"error", err,
				"chatID", chatID)
		}

		return b.sendResult(ctx, chatID, messageID, "", text, nil)
	}

	if shown != text {
		if err = b.editMessageWithKeyboard(ctx, chatID, reply.MessageID, markdown.EscapeV2(text), nil); err != nil {
			return fmt.Errorf("edit message: %w", err)
		}
	}

	return nil
}

// editStreamed shows partial answer text and returns what is on screen.
// Partial answers that outgrow a single message are not shown.
func (b *Bot) editStreamed(ctx context.Context, chatID int64, messageID int, text string, shown string) string {
	if text == shown || len([]rune(text)) > messagePartLength {
		return shown
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, markdown.EscapeV2(text))
	edit.ParseMode = tgbotapi.ModeMarkdownV2

	if _, err := b.sender.Send(ctx, edit); err != nil {
		b.log.WarnContext(ctx, "Failed to edit streamed message",
			"error", err,
			"chatID", chatID,
			"messageID", messageID)

		return shown
	}

	return text
}
