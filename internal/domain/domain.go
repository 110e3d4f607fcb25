package domain

import "time"

type Action string

const (
	ActionSummarize Action = "summarize"
	ActionDefine    Action = "define"
	ActionTranslate Action = "translate"
	ActionRewrite   Action = "rewrite"
	ActionChat      Action = "chat"
)

func (a Action) Valid() bool {
	switch a {
	case ActionSummarize, ActionDefine, ActionTranslate, ActionRewrite, ActionChat:
		return true
	default:
		return false
	}
}

// Request is what the toolbar hands to the action service.
type Request struct {
	Action         Action
	SelectedText   string
	TargetLanguage string
}

type Message struct {
	ID        int64
	ChatID    int64
	Text      string
	IsUser    bool
	CreatedAt time.Time
}

type SavedSummary struct {
	ID      int64
	ChatID  int64
	Title   string
	Content string
}

// Display renders the record the way it is shown in lists.
func (s SavedSummary) Display() string {
	return s.Title + ": " + s.Content
}

type Page struct {
	URL   string
	Title string
	Text  string
}
