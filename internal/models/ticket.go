package models

import (
	"strconv"
)

type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

// Valid reports whether s is one of the known ticket statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// CanTransitionTo reports whether a ticket may move from s to next.
// Transitions only move forward: new -> in_progress -> resolved, or
// straight to resolved. Resolved is terminal. Setting the same status
// again is allowed (timestamp refresh only).
func (s Status) CanTransitionTo(next Status) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	switch s {
	case StatusNew:
		return next == StatusInProgress || next == StatusResolved
	case StatusInProgress:
		return next == StatusResolved
	}
	return false
}

// Ticket represents one tracked support conversation.
type Ticket struct {
	ID             int64  `json:"id"`
	UserID         int64  `json:"user_id"`
	Username       string `json:"username,omitempty"`
	Lang           string `json:"lang,omitempty"`
	Status         Status `json:"status"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
	Content        string `json:"content,omitempty"`
	ForwardedMsgID int    `json:"forwarded_msg_id,omitempty"`

	// ContentOpaque is set when the stored content could not be decrypted
	// and Content still holds the raw stored value.
	ContentOpaque bool `json:"content_opaque,omitempty"`
}

// Hash field names used in the key-value backend.
const (
	FieldID             = "id"
	FieldUserID         = "user_id"
	FieldUsername       = "username"
	FieldLang           = "lang"
	FieldStatus         = "status"
	FieldCreatedAt      = "created_at"
	FieldUpdatedAt      = "updated_at"
	FieldContent        = "content_enc"
	FieldForwardedMsgID = "group_message_id"
)

// ToHash serializes the ticket into the flat string form stored in the
// backend hash. Content must already be in its at-rest form.
func (t *Ticket) ToHash() map[string]string {
	return map[string]string{
		FieldID:             strconv.FormatInt(t.ID, 10),
		FieldUserID:         strconv.FormatInt(t.UserID, 10),
		FieldUsername:       t.Username,
		FieldLang:           t.Lang,
		FieldStatus:         string(t.Status),
		FieldCreatedAt:      strconv.FormatInt(t.CreatedAt, 10),
		FieldUpdatedAt:      strconv.FormatInt(t.UpdatedAt, 10),
		FieldContent:        t.Content,
		FieldForwardedMsgID: strconv.Itoa(t.ForwardedMsgID),
	}
}

// TicketFromHash rebuilds a ticket from its stored hash form. Content is
// left in its at-rest form; decryption happens at the store boundary.
func TicketFromHash(h map[string]string) *Ticket {
	id, _ := strconv.ParseInt(h[FieldID], 10, 64)
	userID, _ := strconv.ParseInt(h[FieldUserID], 10, 64)
	createdAt, _ := strconv.ParseInt(h[FieldCreatedAt], 10, 64)
	updatedAt, _ := strconv.ParseInt(h[FieldUpdatedAt], 10, 64)
	fwdID, _ := strconv.Atoi(h[FieldForwardedMsgID])

	return &Ticket{
		ID:             id,
		UserID:         userID,
		Username:       h[FieldUsername],
		Lang:           h[FieldLang],
		Status:         Status(h[FieldStatus]),
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
		Content:        h[FieldContent],
		ForwardedMsgID: fwdID,
	}
}
