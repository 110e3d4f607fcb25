package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"texthelper/internal/actions"
	"texthelper/internal/domain"
	"texthelper/internal/markdown"
)

const selectionPreviewLength = 300

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	return b.withSpinner(ctx, message.Chat.ID, func() error {
		if message.ForwardDate != 0 { // Forwarded messages are selections.
			return b.handleSelection(ctx, message.Chat.ID, message.MessageID, messageText(message))
		}

		text := strings.TrimSpace(message.Text)

		switch {
		case strings.HasPrefix(text, "/start"):
			return b.handleStartCommand(ctx, message.Chat.ID)
		case strings.HasPrefix(text, "/menu"):
			return b.handleMenuCommand(ctx, message.Chat.ID)
		case strings.HasPrefix(text, "/help"):
			return b.handleHelpCommand(ctx, message.Chat.ID)
		case strings.HasPrefix(text, "/tools"):
			return b.handleToolsCommand(ctx, message)
		case strings.HasPrefix(text, "/summaries"):
			return b.handleSummariesCommand(ctx, message.Chat.ID)
		case strings.HasPrefix(text, "/page"):
			return b.handlePageCommand(ctx, message.Chat.ID, message.MessageID, commandArgument(text))
		case strings.HasPrefix(text, "/refine"):
			return b.handleRefineCommand(ctx, message.Chat.ID, message.MessageID, commandArgument(text))
		case strings.HasPrefix(text, "/clear"):
			return b.handleClearCommand(ctx, message.Chat.ID)
		case text == "":
			return nil
		default:
			return b.handlePanelInput(ctx, message.Chat.ID, message.MessageID, text)
		}
	})
}

func messageText(message *tgbotapi.Message) string {
	if message == nil {
		return ""
	}

	if text := strings.TrimSpace(message.Text); text != "" {
		return text
	}

	return strings.TrimSpace(message.Caption)
}

// commandArgument returns everything after the command word.
func commandArgument(text string) string {
	_, arg, _ := strings.Cut(text, " ")

	return strings.TrimSpace(arg)
}

// handleSelection shows the toolbar for text selected from the message with
// id source.
func (b *Bot) handleSelection(ctx context.Context, chatID int64, source int, text string) error {
	if !b.toolbar.Select(chatID, source, text) {
		b.log.DebugContext(ctx, "Selection is ignored",
			"chatID", chatID,
			"messageID", source,
			"suppressed", b.toolbar.Suppressed(chatID))

		return nil
	}

	preview := []rune(strings.TrimSpace(text))
	if len(preview) > selectionPreviewLength {
		preview = append(preview[:selectionPreviewLength], '…')
	}

	_, err := b.replyWithKeyboard(
		ctx,
		chatID,
		source,
		"✂️ *Selected text:*\n\n"+markdown.EscapeV2(string(preview)),
		getToolbarKeyboard(source),
	)
	if err != nil {
		return fmt.Errorf("send toolbar: %w", err)
	}

	return nil
}

// handlePanelInput routes free text typed into the chat.
func (b *Bot) handlePanelInput(ctx context.Context, chatID int64, messageID int, text string) error {
	cmd := actions.ParseCommand(text)

	switch {
	case cmd.Action == domain.ActionSummarize && cmd.Page:
		return b.handlePageCommand(ctx, chatID, messageID, cmd.Text)
	case cmd.Action == domain.ActionSummarize:
		return b.runPanelAction(ctx, chatID, messageID, text, func() (string, error) {
			return b.actions.Summarize(ctx, cmd.Text)
		}, true)
	case cmd.Action == domain.ActionRewrite:
		return b.runPanelAction(ctx, chatID, messageID, text, func() (string, error) {
			return b.actions.Rewrite(ctx, cmd.Text)
		}, false)
	default:
		return b.handleChat(ctx, chatID, messageID, cmd.Text)
	}
}

// runPanelAction runs a one-shot panel command and records both sides of it
// in the chat history.
func (b *Bot) runPanelAction(
	ctx context.Context,
	chatID int64,
	messageID int,
	input string,
	run func() (string, error),
	saveable bool,
) error {
	b.appendHistory(ctx, chatID, input, true)

	result, err := run()
	if err != nil {
		return b.sendError(ctx, chatID, messageID, err)
	}

	b.appendHistory(ctx, chatID, result, false)

	var keyboard [][]tgbotapi.InlineKeyboardButton
	if saveable {
		b.toolbar.RememberDraft(chatID, messageID, toolbarDraft(result))
		keyboard = getSaveKeyboard(messageID)
	}

	return b.sendResult(ctx, chatID, messageID, "", result, keyboard)
}

func (b *Bot) appendHistory(ctx context.Context, chatID int64, text string, isUser bool) {
	if strings.TrimSpace(text) == "" {
		return
	}

	if err := b.db.AppendMessage(ctx, chatID, text, isUser); err != nil {
		b.log.ErrorContext(ctx, "Failed to append message",
			"error", err,
			"chatID", chatID,
			"isUser", isUser)
	}
}
