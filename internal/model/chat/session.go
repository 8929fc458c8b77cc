package chat

import "time"

// State is the observable state of a chat session.
type State string

const (
	// StateEmpty means no entries yet; the widget shows the welcome view.
	StateEmpty State = "empty"
	// StateActive means at least one entry; there is no way back to empty.
	StateActive State = "active"
)

// Failure describes the last submission whose external call failed.
type Failure struct {
	Text    string    `json:"text"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Session is a read-only snapshot of a chat session handed to the view layer.
type Session struct {
	ID           string    `json:"id"`
	State        State     `json:"state"`
	Entries      []Entry   `json:"entries"`
	Pending      bool      `json:"pending"`
	Failure      *Failure  `json:"failure,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// IsEmpty reports whether the welcome view should be rendered.
func (s Session) IsEmpty() bool {
	return len(s.Entries) == 0
}
