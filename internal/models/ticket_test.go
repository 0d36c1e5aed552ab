package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusNew, StatusInProgress, true},
		{StatusNew, StatusResolved, true},
		{StatusInProgress, StatusResolved, true},
		{StatusInProgress, StatusNew, false},
		{StatusResolved, StatusNew, false},
		{StatusResolved, StatusInProgress, false},
		{StatusResolved, StatusResolved, true},
		{StatusNew, Status("archived"), false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestTicketHashRoundTrip(t *testing.T) {
	in := &Ticket{
		ID:             42,
		UserID:         1001,
		Username:       "alice",
		Lang:           "en",
		Status:         StatusInProgress,
		CreatedAt:      1700000000,
		UpdatedAt:      1700003600,
		Content:        "printer on fire",
		ForwardedMsgID: 77,
	}

	out := TicketFromHash(in.ToHash())
	assert.Equal(t, in, out)
}
