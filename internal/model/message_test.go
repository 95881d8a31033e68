package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateMessageID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := GenerateMessageID()

		assert.Len(t, id, MessageIDLength)
		for _, ch := range id {
			assert.Contains(t, messageIDChars, string(ch))
		}

		_, dup := seen[id]
		assert.False(t, dup, "duplicate message id: %s", id)
		seen[id] = struct{}{}
	}
}

func TestNewConversationID(t *testing.T) {
	at := time.UnixMilli(1700000000000)

	id := NewConversationID("stu_1", "prog_1", at)

	assert.Equal(t, "stu_1_prog_1_1700000000000", id)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusSent, StatusDelivered, true},
		{StatusSent, StatusRead, true},
		{StatusSent, StatusReplied, true},
		{StatusDelivered, StatusRead, true},
		{StatusRead, StatusReplied, true},
		{StatusRead, StatusRead, true},
		{StatusRead, StatusSent, false},
		{StatusRead, StatusDelivered, false},
		{StatusReplied, StatusRead, false},
		{StatusReplied, StatusSent, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestStatusIsValid(t *testing.T) {
	assert.True(t, StatusSent.IsValid())
	assert.True(t, StatusReplied.IsValid())
	assert.False(t, Status("archived").IsValid())
	assert.False(t, Status("").IsValid())
}

func TestPriorityIsValid(t *testing.T) {
	assert.True(t, PriorityUrgent.IsValid())
	assert.False(t, Priority("critical").IsValid())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "anna@example.com", NormalizeEmail("  Anna@Example.COM "))
}
