package chat

import "time"

// Sender identifies which side of the conversation produced an entry.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Source records how a user entry was triggered.
type Source string

const (
	SourceTyped       Source = "typed"
	SourceQuickAction Source = "quick_action"
)

// Entry is one line of the transcript. Entries are append-only.
type Entry struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Source    Source    `json:"source,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Exchange is the outcome of one submission.
type Exchange struct {
	// Skipped is set when the submitted text was empty and nothing happened.
	Skipped bool   `json:"skipped,omitempty"`
	User    *Entry `json:"user,omitempty"`
	Reply   *Entry `json:"reply,omitempty"`
}
