package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"texthelper/internal/actions"
	"texthelper/internal/domain"
	"texthelper/internal/ratelimiter"
	"texthelper/internal/toolbar"
)

const (
	maxBackoffSeconds         = 60
	initialBackoffSeconds     = 3
	backoffGrowthFactor       = 2
	resetOffsetBackoffSeconds = 30
	updateProcessingTimeout   = 5 * time.Minute

	BotUpdateTimeout = 60
)

// Sender delivers outbound calls. *ratelimiter.RateLimiter is the
// production implementation.
type Sender interface {
	Send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(ctx context.Context, c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	Answer(c tgbotapi.CallbackConfig) error
	Stop()
}

type Store interface {
	AppendMessage(ctx context.Context, chatID int64, text string, isUser bool) error
	ListMessages(ctx context.Context, chatID int64, limit int) ([]domain.Message, error)
	ClearMessages(ctx context.Context, chatID int64) error
	SaveSummary(ctx context.Context, chatID int64, title string, content string) (int64, error)
	ListSummaries(ctx context.Context, chatID int64) ([]domain.SavedSummary, error)
	DeleteSummary(ctx context.Context, chatID int64, id int64) error
	DeleteAllSummaries(ctx context.Context, chatID int64) (int64, error)
}

type Bot struct {
	api            *tgbotapi.BotAPI
	sender         Sender
	db             Store
	actions        *actions.Service
	toolbar        *toolbar.Controller
	allowUser      func(userID int64) bool
	returnKeyboard [][]tgbotapi.InlineKeyboardButton
	menuKeyboard   [][]tgbotapi.InlineKeyboardButton
	log            *slog.Logger
}

func New(
	token string,
	db Store,
	service *actions.Service,
	tb *toolbar.Controller,
	allowUser func(userID int64) bool,
	log *slog.Logger,
) (*Bot, error) {
	token = strings.TrimSpace(token)

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	b := newBot(ratelimiter.New(api, log), db, service, tb, allowUser, log)
	b.api = api

	return b, nil
}

func newBot(
	sender Sender,
	db Store,
	service *actions.Service,
	tb *toolbar.Controller,
	allowUser func(userID int64) bool,
	log *slog.Logger,
) *Bot {
	return &Bot{
		sender:         sender,
		db:             db,
		actions:        service,
		toolbar:        tb,
		allowUser:      allowUser,
		returnKeyboard: getReturnKeyboard(),
		menuKeyboard:   getMenuKeyboard(),
		log:            log,
	}
}

func (b *Bot) Start(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = BotUpdateTimeout

	backoffSeconds := initialBackoffSeconds

	for {
		select {
		case <-ctx.Done():
			b.log.InfoContext(ctx, "Bot context is done",
				"error", ctx.Err())
			return
		default:
		}

		updates := b.api.GetUpdatesChan(updateConfig)
		updatesClosed := false

		for !updatesClosed {
			select {
			case <-ctx.Done():
				b.api.StopReceivingUpdates()
				b.log.InfoContext(ctx, "Bot context is done",
					"error", ctx.Err())
				return

			case update, ok := <-updates:
				if !ok {
					updatesClosed = true
					continue
				}
				updateConfig.Offset = update.UpdateID + 1

				b.handleUpdate(ctx, &update)
			}
		}

		if ctx.Err() != nil {
			return
		}

		b.log.WarnContext(ctx, "Update channel is closed, reconnecting...",
			"offset", updateConfig.Offset,
			"backoffSeconds", backoffSeconds)

		select {
		case <-time.After(time.Duration(backoffSeconds) * time.Second):
		case <-ctx.Done():
			return
		}

		backoffSeconds = updateBackoffSeconds(backoffSeconds)

		if backoffSeconds >= resetOffsetBackoffSeconds {
			updateConfig.Offset = 0
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	switch {
	case update.Message != nil && update.Message.From != nil:
		chatID, chatType := chatContext(update.Message.Chat)

		userID := update.Message.From.ID
		if !b.userAllowed(userID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", userID,
				"chatID", chatID,
				"username", update.Message.From.UserName,
				"chatType", chatType)

			return
		}

		if err := b.handleMessage(updateCtx, update.Message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", chatID,
				"userID", userID,
				"chatType", chatType,
				"messageID", update.Message.MessageID)
		}

	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		chatID := callbackChatID(update.CallbackQuery)

		if !b.userAllowed(update.CallbackQuery.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", update.CallbackQuery.From.ID,
				"chatID", chatID,
				"username", update.CallbackQuery.From.UserName,
				"data", update.CallbackQuery.Data)

			return
		}

		if update.CallbackQuery.Message == nil || update.CallbackQuery.Message.Chat == nil {
			return
		}

		if err := b.handleCallbackQuery(updateCtx, update.CallbackQuery); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"chatID", chatID,
				"userID", update.CallbackQuery.From.ID,
				"data", update.CallbackQuery.Data,
				"messageID", callbackMessageID(update.CallbackQuery))
		}
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return b.allowUser == nil || b.allowUser(userID)
}

func chatContext(chat *tgbotapi.Chat) (int64, string) {
	if chat == nil {
		return 0, ""
	}

	return chat.ID, chat.Type
}

func callbackChatID(cb *tgbotapi.CallbackQuery) int64 {
	if cb != nil && cb.Message != nil && cb.Message.Chat != nil {
		return cb.Message.Chat.ID
	}

	return 0
}

func callbackMessageID(cb *tgbotapi.CallbackQuery) int {
	if cb != nil && cb.Message != nil {
		return cb.Message.MessageID
	}

	return 0
}

func (b *Bot) Stop() {
	if b.sender != nil {
		b.sender.Stop()
	}
}

func updateBackoffSeconds(backoffSeconds int) int {
	if backoffSeconds < maxBackoffSeconds {
		backoffSeconds *= backoffGrowthFactor
		if backoffSeconds > maxBackoffSeconds {
			backoffSeconds = maxBackoffSeconds
		}
	}
	return backoffSeconds
}
