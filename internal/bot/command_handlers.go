package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"texthelper/internal/markdown"
	"texthelper/internal/toolbar"
)

const summaryPreviewLength = 200

const welcomeText = `🤖 *Welcome to Text Helper\!*

I work with any text you send me:

– Forward a message, or reply to one with /tools, to get the toolbar:
  summarize, define, translate or rewrite the selected text
– Type ` + "`summarize: <text or URL>`" + ` or ` + "`rewrite: <text>`" + `
– Anything else is a chat with the model
– Summarize a web page with /page
– Keep summaries with 💾 and list them with /summaries
– Rewrite with your saved summaries as context with /refine
– Forget the conversation with /clear`

const helpText = `❔ *How to use*

*Toolbar:* forward a message or reply to one with /tools\.
*Panel:* ` + "`summarize:`" + `, ` + "`rewrite:`" + ` or just chat\.
*Pages:* /page https://example\.com/article
*Saved summaries:* /summaries, /refine <text\>
*History:* /clear`

func (b *Bot) handleStartCommand(ctx context.Context, chatID int64) error {
	b.toolbar.Refresh(chatID)

	if _, err := b.sendMessageWithKeyboard(ctx, chatID, welcomeText, b.menuKeyboard); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	return nil
}

func (b *Bot) handleMenuCommand(ctx context.Context, chatID int64) error {
	_, err := b.sendMessageWithKeyboard(ctx, chatID, "❔ *Choose an option:*", b.menuKeyboard)

	return err
}

func (b *Bot) handleHelpCommand(ctx context.Context, chatID int64) error {
	_, err := b.sendMessageWithKeyboard(ctx, chatID, helpText, b.returnKeyboard)

	return err
}

func (b *Bot) handleToolsCommand(ctx context.Context, message *tgbotapi.Message) error {
	source := message.ReplyToMessage

	text := messageText(source)
	if text == "" {
		_, err := b.replyWithKeyboard(
			ctx,
			message.Chat.ID,
			message.MessageID,
			"✖️ Reply to a message with /tools to select its text\\.",
			nil,
		)

		return err
	}

	return b.handleSelection(ctx, message.Chat.ID, source.MessageID, text)
}

func (b *Bot) handleSummariesCommand(ctx context.Context, chatID int64) error {
	text, keyboard, err := b.summariesView(ctx, chatID)
	if err != nil {
		return b.sendError(ctx, chatID, 0, err)
	}

	_, err = b.sendMessageWithKeyboard(ctx, chatID, text, keyboard)

	return err
}

func (b *Bot) summariesView(
	ctx context.Context,
	chatID int64,
) (string, [][]tgbotapi.InlineKeyboardButton, error) {
	summaries, err := b.db.ListSummaries(ctx, chatID)
	if err != nil {
		return "", nil, fmt.Errorf("list summaries: %w", err)
	}

	if len(summaries) == 0 {
		return "✖️ No saved summaries yet\\.", b.returnKeyboard, nil
	}

	var message strings.Builder
	message.WriteString(fmt.Sprintf("🗂 *Saved summaries \\(%d\\):*\n\n", len(summaries)))

	for i, s := range summaries {
		display := []rune(s.Display())
		if len(display) > summaryPreviewLength {
			display = append(display[:summaryPreviewLength], '…')
		}

		message.WriteString(fmt.Sprintf("%d\\. %s\n\n", i+1, markdown.EscapeV2(string(display))))
	}

	return message.String(), getSummariesKeyboard(summaries), nil
}

// handlePageCommand summarizes the page behind the first URL in input.
func (b *Bot) handlePageCommand(ctx context.Context, chatID int64, messageID int, input string) error {
	result, err := b.actions.SummarizePage(ctx, input)
	if err != nil {
		return b.sendError(ctx, chatID, messageID, err)
	}

	title := strings.TrimSpace(result.Title)
	if title == "" {
		title = result.URL
	}

	b.toolbar.RememberDraft(chatID, messageID, toolbar.Draft{Title: title, Content: result.Summary})

	header := fmt.Sprintf("📝 *%s*", markdown.EscapeV2(title))

	return b.sendResult(ctx, chatID, messageID, header, result.Summary, getSaveKeyboard(messageID))
}

// handleRefineCommand rewrites input with every saved summary as context.
func (b *Bot) handleRefineCommand(ctx context.Context, chatID int64, messageID int, input string) error {
	if input == "" {
		_, err := b.replyWithKeyboard(ctx, chatID, messageID, "✖️ Usage: /refine <text\\>", nil)

		return err
	}

	summaries, err := b.db.ListSummaries(ctx, chatID)
	if err != nil {
		return b.sendError(ctx, chatID, messageID, fmt.Errorf("list summaries: %w", err))
	}

	saved := make([]string, 0, len(summaries))
	for _, s := range summaries {
		saved = append(saved, s.Display())
	}

	result, err := b.actions.RewriteWithSaved(ctx, saved, input)
	if err != nil {
		return b.sendError(ctx, chatID, messageID, err)
	}

	return b.sendResult(ctx, chatID, messageID, "", result, nil)
}

func (b *Bot) handleClearCommand(ctx context.Context, chatID int64) error {
	var errs []error

	b.actions.ResetChat(ctx, chatID)

	if err := b.db.ClearMessages(ctx, chatID); err != nil {
		errs = append(errs, fmt.Errorf("clear messages: %w", err))

		if _, sendErr := b.sendMessageWithKeyboard(ctx, chatID, "❌ Failed\\.", b.returnKeyboard); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	if _, err := b.sendMessageWithKeyboard(ctx, chatID, "✅ Chat history is cleared\\.", b.returnKeyboard); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	return nil
}
