package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/supportpro/backend/internal/model/chat"
	"github.com/zhouzirui/supportpro/backend/internal/service/conversation"
)

// ErrSubmissionInFlight is returned when a session already waits on the
// conversation backend.
var ErrSubmissionInFlight = errors.New("a message is already being processed for this session")

// ConversationClient is what a controller needs from the backend.
type ConversationClient interface {
	Send(ctx context.Context, text, sessionID, languageCode string) (string, error)
}

// Controller owns one browser tab's session id and transcript. All
// mutation goes through its methods; readers get copies.
type Controller struct {
	client       ConversationClient
	languageCode string
	newID        func() string
	now          func() time.Time

	mu           sync.Mutex
	id           string
	entries      []chat.Entry
	pending      bool
	failure      *chat.Failure
	createdAt    time.Time
	lastActivity time.Time
}

// NewController creates an uninitialized controller; call Initialize before use.
func NewController(client ConversationClient, languageCode string) *Controller {
	return &Controller{
		client:       client,
		languageCode: languageCode,
		newID:        uuid.NewString,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Initialize assigns the session id and an empty transcript on first use.
// Later calls return the same id.
func (c *Controller) Initialize() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.id == "" {
		c.id = c.newID()
		c.entries = make([]chat.Entry, 0, 16)
		c.createdAt = c.now()
		c.lastActivity = c.createdAt
	}
	return c.id
}

// ID returns the session id, or "" before Initialize.
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// SubmitUserMessage relays typed text to the backend verbatim. Empty text is
// ignored without touching the transcript or the backend.
func (c *Controller) SubmitUserMessage(ctx context.Context, text string) (chat.Exchange, error) {
	return c.submit(ctx, text, chat.SourceTyped)
}

// SubmitQuickAction relays a menu label exactly like typed text.
func (c *Controller) SubmitQuickAction(ctx context.Context, label string) (chat.Exchange, error) {
	return c.submit(ctx, label, chat.SourceQuickAction)
}

func (c *Controller) submit(ctx context.Context, text string, source chat.Source) (chat.Exchange, error) {
	if text == "" {
		return chat.Exchange{Skipped: true}, nil
	}

	c.mu.Lock()
	if c.id == "" {
		c.mu.Unlock()
		return chat.Exchange{}, errors.New("chat session is not initialized")
	}
	if c.pending {
		c.mu.Unlock()
		return chat.Exchange{}, ErrSubmissionInFlight
	}
	c.pending = true
	sessionID := c.id
	userEntry := c.appendLocked(chat.SenderUser, text, source)
	c.mu.Unlock()

	reply, err := c.client.Send(ctx, text, sessionID, c.languageCode)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false

	if err != nil {
		c.failure = &chat.Failure{
			Text:    text,
			Kind:    failureKind(err),
			Message: err.Error(),
			At:      c.now(),
		}
		log.Warn().Err(err).Str("session", sessionID).Str("source", string(source)).Msg("conversation call failed")
		return chat.Exchange{User: &userEntry}, fmt.Errorf("send message: %w", err)
	}

	c.failure = nil
	botEntry := c.appendLocked(chat.SenderBot, reply, "")
	return chat.Exchange{User: &userEntry, Reply: &botEntry}, nil
}

func (c *Controller) appendLocked(sender chat.Sender, text string, source chat.Source) chat.Entry {
	now := c.now()
	entry := chat.Entry{
		ID:        c.newID(),
		Sender:    sender,
		Text:      text,
		Source:    source,
		CreatedAt: now,
	}
	c.entries = append(c.entries, entry)
	c.lastActivity = now
	return entry
}

// Transcript returns a copy of the entries in display order.
func (c *Controller) Transcript() []chat.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := make([]chat.Entry, len(c.entries))
	copy(copied, c.entries)
	return copied
}

// State is Empty until the first entry is appended, Active afterwards.
func (c *Controller) State() chat.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// IsEmpty reports whether the welcome view applies.
func (c *Controller) IsEmpty() bool {
	return c.State() == chat.StateEmpty
}

func (c *Controller) stateLocked() chat.State {
	if len(c.entries) == 0 {
		return chat.StateEmpty
	}
	return chat.StateActive
}

// Failure returns the last failed submission, nil after a success.
func (c *Controller) Failure() *chat.Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failure == nil {
		return nil
	}
	f := *c.failure
	return &f
}

// Pending reports whether a backend call is in flight.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Snapshot returns everything the view layer renders.
func (c *Controller) Snapshot() chat.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]chat.Entry, len(c.entries))
	copy(entries, c.entries)

	var failure *chat.Failure
	if c.failure != nil {
		f := *c.failure
		failure = &f
	}

	return chat.Session{
		ID:           c.id,
		State:        c.stateLocked(),
		Entries:      entries,
		Pending:      c.pending,
		Failure:      failure,
		CreatedAt:    c.createdAt,
		LastActivity: c.lastActivity,
	}
}

func (c *Controller) touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = c.now()
}

func (c *Controller) idleSince() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity, c.pending
}

func failureKind(err error) string {
	var extErr *conversation.ExternalServiceError
	if errors.As(err, &extErr) {
		return string(extErr.Kind)
	}
	return string(conversation.KindUnknown)
}
