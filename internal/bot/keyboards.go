package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"texthelper/internal/domain"
	"texthelper/internal/gateway"
)

const (
	toolbarCallbackPrefix       = "tb:"
	saveCallbackPrefix          = "sv:"
	deleteSummaryCallbackPrefix = "sd:"
	deleteAllSummariesCallback  = "sda"

	toolbarClose      = "close"
	toolbarCloseOne   = "close_one"
	toolbarCloseAll   = "close_all"
	toolbarBack       = "back"
	languageRowSize   = 5
	summaryButtonsRow = 4
)

// toolbarData is the payload of a toolbar button. Source is the id of the
// message holding the selected text.
type toolbarData struct {
	Command  string
	Source   int
	Language string
}

func (d toolbarData) String() string {
	s := toolbarCallbackPrefix + d.Command + ":" + strconv.Itoa(d.Source)
	if d.Language != "" {
		s += ":" + d.Language
	}

	return s
}

func parseToolbarData(data string) (toolbarData, bool) {
	rest, ok := strings.CutPrefix(data, toolbarCallbackPrefix)
	if !ok {
		return toolbarData{}, false
	}

	parts := strings.Split(rest, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
		return toolbarData{}, false
	}

	source, err := strconv.Atoi(parts[1])
	if err != nil {
		return toolbarData{}, false
	}

	d := toolbarData{Command: parts[0], Source: source}
	if len(parts) == 3 {
		d.Language = parts[2]
	}

	return d, true
}

func (b *Bot) sendMessageWithKeyboard(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) (tgbotapi.Message, error) {
	message := tgbotapi.NewMessage(chatID, b.normalizeText(ctx, chatID, text))

	// See https://core.telegram.org/bots/api#markdownv2-style.
	message.ParseMode = tgbotapi.ModeMarkdownV2

	message.DisableWebPagePreview = true
	if len(keyboard) > 0 {
		message.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	}

	return b.sender.Send(ctx, message)
}

func (b *Bot) replyWithKeyboard(
	ctx context.Context,
	chatID int64,
	replyTo int,
	text string,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) (tgbotapi.Message, error) {
	message := tgbotapi.NewMessage(chatID, b.normalizeText(ctx, chatID, text))
	message.ParseMode = tgbotapi.ModeMarkdownV2
	message.DisableWebPagePreview = true
	message.ReplyToMessageID = replyTo
	message.AllowSendingWithoutReply = true

	if len(keyboard) > 0 {
		message.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	}

	return b.sender.Send(ctx, message)
}

func (b *Bot) editKeyboard(
	ctx context.Context,
	chatID int64,
	messageID int,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) error {
	markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	if len(keyboard) == 0 {
		markup.InlineKeyboard = [][]tgbotapi.InlineKeyboardButton{}
	}

	_, err := b.sender.Request(ctx, tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, markup))

	return err
}

func (b *Bot) editMessageWithKeyboard(
	ctx context.Context,
	chatID int64,
	messageID int,
	text string,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, b.normalizeText(ctx, chatID, text))
	edit.ParseMode = tgbotapi.ModeMarkdownV2
	edit.DisableWebPagePreview = true

	if len(keyboard) > 0 {
		markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
		edit.ReplyMarkup = &markup
	}

	_, err := b.sender.Send(ctx, edit)

	return err
}

func (b *Bot) normalizeText(ctx context.Context, chatID int64, text string) string {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	return normalizedText
}

func getReturnKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData("⬅️ Return to menu", "menu")},
	}
}

func getMenuKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("🗂 Saved summaries", "menu_summaries"),
			tgbotapi.NewInlineKeyboardButtonData("🧹 Clear chat", "menu_clear"),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("❔ Help", "menu_help"),
		},
	}
}

func getToolbarKeyboard(source int) [][]tgbotapi.InlineKeyboardButton {
	button := func(label string, command string) tgbotapi.InlineKeyboardButton {
		return tgbotapi.NewInlineKeyboardButtonData(label, toolbarData{Command: command, Source: source}.String())
	}

	return [][]tgbotapi.InlineKeyboardButton{
		{
			button("📝 Summarize", string(domain.ActionSummarize)),
			button("📖 Define", string(domain.ActionDefine)),
		},
		{
			button("🌐 Translate", string(domain.ActionTranslate)),
			button("✏️ Rewrite", string(domain.ActionRewrite)),
		},
		{
			button("✖️ Close", toolbarClose),
		},
	}
}

func getCloseKeyboard(source int) [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("Close",
				toolbarData{Command: toolbarCloseOne, Source: source}.String()),
			tgbotapi.NewInlineKeyboardButtonData("Until refresh",
				toolbarData{Command: toolbarCloseAll, Source: source}.String()),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back",
				toolbarData{Command: toolbarBack, Source: source}.String()),
		},
	}
}

func getLanguageKeyboard(source int) [][]tgbotapi.InlineKeyboardButton {
	var keyboard [][]tgbotapi.InlineKeyboardButton

	languages := gateway.Languages
	for i := 0; i < len(languages); i += languageRowSize {
		var row []tgbotapi.InlineKeyboardButton

		for j := i; j < i+languageRowSize && j < len(languages); j++ {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				languages[j].Name,
				toolbarData{
					Command:  string(domain.ActionTranslate),
					Source:   source,
					Language: languages[j].Code,
				}.String(),
			))
		}

		keyboard = append(keyboard, row)
	}

	return append(keyboard, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", toolbarData{Command: toolbarBack, Source: source}.String()),
	})
}

func getSaveKeyboard(source int) [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData("💾 Save", saveCallbackPrefix+strconv.Itoa(source))},
	}
}

func getSummariesKeyboard(summaries []domain.SavedSummary) [][]tgbotapi.InlineKeyboardButton {
	var keyboard [][]tgbotapi.InlineKeyboardButton

	for i := 0; i < len(summaries); i += summaryButtonsRow {
		var row []tgbotapi.InlineKeyboardButton

		for j := i; j < i+summaryButtonsRow && j < len(summaries); j++ {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗑 %d", j+1),
				deleteSummaryCallbackPrefix+strconv.FormatInt(summaries[j].ID, 10),
			))
		}

		keyboard = append(keyboard, row)
	}

	if len(summaries) > 0 {
		keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🧹 Delete all", deleteAllSummariesCallback),
		})
	}

	return append(keyboard, getReturnKeyboard()...)
}
