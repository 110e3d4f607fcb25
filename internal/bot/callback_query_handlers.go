package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"texthelper/internal/database"
	"texthelper/internal/domain"
	"texthelper/internal/toolbar"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	chatID := callback.Message.Chat.ID
	data := strings.TrimSpace(callback.Data)

	switch data {
	case "menu":
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.handleMenuCommand(ctx, chatID)
		})
	case "menu_summaries":
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.handleSummariesCommand(ctx, chatID)
		})
	case "menu_clear":
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.handleClearCommand(ctx, chatID)
		})
	case "menu_help":
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.handleHelpCommand(ctx, chatID)
		})
	case deleteAllSummariesCallback:
		return b.handleDeleteAllSummariesQuery(ctx, callback)
	}

	if d, ok := parseToolbarData(data); ok {
		return b.handleToolbarQuery(ctx, d, callback)
	}

	if sourceStr, ok := strings.CutPrefix(data, saveCallbackPrefix); ok {
		return b.handleSaveQuery(ctx, sourceStr, callback)
	}

	if idStr, ok := strings.CutPrefix(data, deleteSummaryCallbackPrefix); ok {
		return b.handleDeleteSummaryQuery(ctx, idStr, callback)
	}

	return b.withEmptyCallbackAnswer(callback, func() error { return nil })
}

func (b *Bot) handleToolbarQuery(
	ctx context.Context,
	d toolbarData,
	callback *tgbotapi.CallbackQuery,
) error {
	chatID := callback.Message.Chat.ID
	toolbarMessageID := callback.Message.MessageID

	switch d.Command {
	case toolbarClose:
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.editKeyboard(ctx, chatID, toolbarMessageID, getCloseKeyboard(d.Source))
		})
	case toolbarBack:
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.editKeyboard(ctx, chatID, toolbarMessageID, getToolbarKeyboard(d.Source))
		})
	case toolbarCloseOne:
		b.toolbar.Close(chatID, d.Source)

		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.deleteMessage(ctx, chatID, toolbarMessageID)
		})
	case toolbarCloseAll:
		b.toolbar.CloseUntilRefresh(chatID, d.Source)

		return b.withCallbackAnswer(callback, "Toolbar is off until /start.", func() error {
			return b.deleteMessage(ctx, chatID, toolbarMessageID)
		})
	}

	req, err := b.toolbar.Choose(chatID, d.Source, domain.Action(d.Command), d.Language)

	switch {
	case errors.Is(err, toolbar.ErrLanguageRequired):
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.editKeyboard(ctx, chatID, toolbarMessageID, getLanguageKeyboard(d.Source))
		})
	case errors.Is(err, toolbar.ErrNoSelection):
		return b.errorCallbackAnswer(callback, "❌ Selection expired, select the text again.", err)
	case err != nil:
		return b.errorCallbackAnswer(callback, "❌ Failed.", err)
	}

	return b.withEmptyCallbackAnswer(callback, func() error {
		return b.withSpinner(ctx, chatID, func() error {
			return b.runToolbarRequest(ctx, chatID, d.Source, req)
		})
	})
}

func (b *Bot) runToolbarRequest(ctx context.Context, chatID int64, source int, req domain.Request) error {
	result, err := b.actions.Handle(ctx, req)
	if err != nil {
		return b.sendError(ctx, chatID, source, err)
	}

	var keyboard [][]tgbotapi.InlineKeyboardButton
	if req.Action == domain.ActionSummarize {
		b.toolbar.RememberDraft(chatID, source, toolbarDraft(result))
		keyboard = getSaveKeyboard(source)
	}

	return b.sendResult(ctx, chatID, source, "", result, keyboard)
}

func (b *Bot) handleSaveQuery(
	ctx context.Context,
	sourceStr string,
	callback *tgbotapi.CallbackQuery,
) error {
	chatID := callback.Message.Chat.ID

	source, err := strconv.Atoi(strings.TrimSpace(sourceStr))
	if err != nil {
		return b.errorCallbackAnswer(callback, "❌ Failed.", fmt.Errorf("parse source: %w", err))
	}

	draft, ok := b.toolbar.Draft(chatID, source)
	if !ok {
		return b.errorCallbackAnswer(callback, "❌ Nothing to save.", nil)
	}

	if _, err = b.db.SaveSummary(ctx, chatID, draft.Title, draft.Content); err != nil {
		return b.errorCallbackAnswer(callback, "❌ Failed.", fmt.Errorf("save summary: %w", err))
	}

	b.toolbar.ForgetDraft(chatID, source)

	return b.withCallbackAnswer(callback, "✅ Summary is saved.", func() error {
		return b.editKeyboard(ctx, chatID, callback.Message.MessageID, nil)
	})
}

func (b *Bot) handleDeleteSummaryQuery(
	ctx context.Context,
	idStr string,
	callback *tgbotapi.CallbackQuery,
) error {
	chatID := callback.Message.Chat.ID

	id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	if err != nil {
		return b.errorCallbackAnswer(callback, "❌ Failed.", fmt.Errorf("parse summary id: %w", err))
	}

	err = b.db.DeleteSummary(ctx, chatID, id)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return b.errorCallbackAnswer(callback, "❌ Failed.", fmt.Errorf("delete summary: %w", err))
	}

	return b.withCallbackAnswer(callback, "✅ Summary is deleted.", func() error {
		return b.refreshSummaries(ctx, chatID, callback.Message.MessageID)
	})
}

func (b *Bot) handleDeleteAllSummariesQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	chatID := callback.Message.Chat.ID

	deleted, err := b.db.DeleteAllSummaries(ctx, chatID)
	if err != nil {
		return b.errorCallbackAnswer(callback, "❌ Failed.", fmt.Errorf("delete all summaries: %w", err))
	}

	b.log.InfoContext(ctx, "Summaries are deleted",
		"chatID", chatID,
		"count", deleted)

	return b.withCallbackAnswer(callback, "✅ All summaries are deleted.", func() error {
		return b.refreshSummaries(ctx, chatID, callback.Message.MessageID)
	})
}

func (b *Bot) refreshSummaries(ctx context.Context, chatID int64, messageID int) error {
	text, keyboard, err := b.summariesView(ctx, chatID)
	if err != nil {
		return err
	}

	return b.editMessageWithKeyboard(ctx, chatID, messageID, text, keyboard)
}

func (b *Bot) deleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := b.sender.Request(ctx, tgbotapi.NewDeleteMessage(chatID, messageID))

	return err
}

func (b *Bot) withEmptyCallbackAnswer(
	callback *tgbotapi.CallbackQuery,
	fn func() error,
) error {
	return b.withCallbackAnswer(callback, "", fn)
}

func (b *Bot) withCallbackAnswer(
	callback *tgbotapi.CallbackQuery,
	text string,
	fn func() error,
) error {
	var errs []error

	if err := b.sender.Answer(tgbotapi.NewCallback(callback.ID, text)); err != nil {
		errs = append(errs, fmt.Errorf("answer callback: %w", err))
	}

	if err := fn(); err != nil {
		errs = append(errs, fmt.Errorf("call fn: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) errorCallbackAnswer(
	callback *tgbotapi.CallbackQuery,
	text string,
	err error,
) error {
	if sendErr := b.sender.Answer(tgbotapi.NewCallback(callback.ID, text)); sendErr != nil {
		return errors.Join(err, fmt.Errorf("answer callback: %w", sendErr))
	}

	return err
}
