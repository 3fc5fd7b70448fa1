package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	_, ok := RequestID(context.Background())
	assert.False(t, ok)

	_, ok = RequestID(WithRequestID(context.Background(), ""))
	assert.False(t, ok, "empty id is treated as absent")

	id, ok := RequestID(WithRequestID(context.Background(), "req-1"))
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)
}

func TestSubject(t *testing.T) {
	ctx := WithSubject(WithRequestID(context.Background(), "req-1"), "user-42")

	sub, ok := Subject(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-42", sub)

	id, _ := RequestID(ctx)
	assert.Equal(t, "req-1", id)
}
