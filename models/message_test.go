package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationID_OrderIndependent(t *testing.T) {
	t.Parallel()

	pairs := []struct{ a, b int64 }{
		{1, 2},
		{2, 1},
		{42, 7},
		{7, 42},
		{1, 1},
		{1000000, 999999},
	}

	for _, p := range pairs {
		assert.Equal(t, ConversationID(p.a, p.b), ConversationID(p.b, p.a),
			"ConversationID(%d,%d) must not depend on argument order", p.a, p.b)
	}
}

func TestConversationID_Format(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b int64
		want string
	}{
		{1, 2, "1_2"},
		{2, 1, "1_2"},
		{7, 42, "7_42"},
		{42, 7, "7_42"},
		{5, 5, "5_5"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ConversationID(tt.a, tt.b))
	}
}

func TestConversationID_Distinct(t *testing.T) {
	t.Parallel()

	// Different pairs must never collide
	assert.NotEqual(t, ConversationID(1, 2), ConversationID(1, 3))
	assert.NotEqual(t, ConversationID(1, 23), ConversationID(12, 3))
}
