// Package toolbar keeps the per-chat selection state behind the inline
// action keyboard.
package toolbar

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"texthelper/internal/cache"
	"texthelper/internal/domain"
)

const (
	DefaultTTL        = 30 * time.Minute
	DefaultMaxEntries = 1024
)

var (
	ErrNoSelection      = errors.New("no text selected")
	ErrLanguageRequired = errors.New("target language is required")
	ErrUnknownAction    = errors.New("unknown action")
)

// Selection is the text a toolbar message was opened for.
type Selection struct {
	ChatID    int64
	MessageID int
	Text      string
}

// Draft is a result that can still be saved as a summary.
type Draft struct {
	Title   string
	Content string
}

type chatState struct {
	lastText     string
	closedForNow bool
}

// Controller is safe for concurrent use. Every piece of state lives in a
// bounded cache, so abandoned toolbars expire on their own.
type Controller struct {
	selections *cache.LRU[Selection]
	chats      *cache.LRU[chatState]
	drafts     *cache.LRU[Draft]
	ttl        time.Duration
	now        func() time.Time
}

func New(maxEntries int, ttl time.Duration) *Controller {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Controller{
		selections: cache.NewLRU[Selection](maxEntries),
		chats:      cache.NewLRU[chatState](maxEntries),
		drafts:     cache.NewLRU[Draft](maxEntries),
		ttl:        ttl,
		now:        time.Now,
	}
}

// Select stores text as the selection of a toolbar message. It reports
// whether a toolbar should be shown at all: empty text, a repeat of the
// previous selection and chats that closed the toolbar until refresh are
// ignored.
func (c *Controller) Select(chatID int64, messageID int, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	now := c.now()
	chatKey := chatKey(chatID)

	state, _ := c.chats.Get(chatKey, now)
	if state.closedForNow || state.lastText == text {
		return false
	}

	state.lastText = text
	c.chats.Set(chatKey, state, now.Add(c.ttl), now)

	c.selections.Set(messageKey(chatID, messageID), Selection{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	}, now.Add(c.ttl), now)

	return true
}

// Selected returns the selection of a toolbar message.
func (c *Controller) Selected(chatID int64, messageID int) (Selection, bool) {
	return c.selections.Get(messageKey(chatID, messageID), c.now())
}

// Choose turns a toolbar button press into a request.
func (c *Controller) Choose(
	chatID int64,
	messageID int,
	action domain.Action,
	targetLanguage string,
) (domain.Request, error) {
	if !action.Valid() || action == domain.ActionChat {
		return domain.Request{}, ErrUnknownAction
	}

	sel, ok := c.Selected(chatID, messageID)
	if !ok || sel.Text == "" {
		return domain.Request{}, ErrNoSelection
	}

	if action == domain.ActionTranslate && strings.TrimSpace(targetLanguage) == "" {
		return domain.Request{}, ErrLanguageRequired
	}

	return domain.Request{
		Action:         action,
		SelectedText:   sel.Text,
		TargetLanguage: strings.TrimSpace(targetLanguage),
	}, nil
}

// Close drops the toolbar of a single message. The same text may be
// selected again afterwards.
func (c *Controller) Close(chatID int64, messageID int) {
	c.selections.Delete(messageKey(chatID, messageID))

	now := c.now()
	chatKey := chatKey(chatID)

	if state, ok := c.chats.Get(chatKey, now); ok {
		state.lastText = ""
		c.chats.Set(chatKey, state, now.Add(c.ttl), now)
	}
}

// CloseUntilRefresh closes the toolbar and suppresses new ones until
// Refresh is called.
func (c *Controller) CloseUntilRefresh(chatID int64, messageID int) {
	c.selections.Delete(messageKey(chatID, messageID))

	now := c.now()
	// Suppression outlives regular selection state.
	c.chats.Set(chatKey(chatID), chatState{closedForNow: true}, now.Add(24*time.Hour), now)
}

func (c *Controller) Refresh(chatID int64) {
	c.chats.Delete(chatKey(chatID))
}

func (c *Controller) Suppressed(chatID int64) bool {
	state, _ := c.chats.Get(chatKey(chatID), c.now())

	return state.closedForNow
}

func (c *Controller) RememberDraft(chatID int64, messageID int, draft Draft) {
	now := c.now()
	c.drafts.Set(messageKey(chatID, messageID), draft, now.Add(c.ttl), now)
}

func (c *Controller) Draft(chatID int64, messageID int) (Draft, bool) {
	return c.drafts.Get(messageKey(chatID, messageID), c.now())
}

// ForgetDraft drops a draft once it is saved, so a result is saved once.
func (c *Controller) ForgetDraft(chatID int64, messageID int) {
	c.drafts.Delete(messageKey(chatID, messageID))
}

func chatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func messageKey(chatID int64, messageID int) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(messageID)
}
