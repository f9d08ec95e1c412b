package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_PutPeekTake(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	e := Entry{Code: "482913", ExpiresAt: time.Now().Add(time.Minute)}

	m.Put(ctx, Key("u1", "email"), e)

	got, ok := m.Peek(ctx, Key("u1", "email"))
	require.True(t, ok)
	assert.Equal(t, e.Code, got.Code)

	// Peek must not consume.
	_, ok = m.Peek(ctx, Key("u1", "email"))
	require.True(t, ok)

	got, ok = m.Take(ctx, Key("u1", "email"))
	require.True(t, ok)
	assert.Equal(t, e.Code, got.Code)

	// Take must consume.
	_, ok = m.Peek(ctx, Key("u1", "email"))
	assert.False(t, ok)
}

func TestMemory_ExpiredEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Put(ctx, "k", Entry{Code: "482913", ExpiresAt: time.Now().Add(20 * time.Millisecond)})
	time.Sleep(50 * time.Millisecond)

	_, ok := m.Peek(ctx, "k")
	assert.False(t, ok)
}

func TestMemory_PutAlreadyExpired_Ignored(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.Put(ctx, "k", Entry{Code: "482913", ExpiresAt: time.Now().Add(-time.Second)})

	_, ok := m.Peek(ctx, "k")
	assert.False(t, ok)
}

func TestMemory_Remove(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Put(ctx, "k", Entry{Code: "482913", ExpiresAt: time.Now().Add(time.Minute)})

	m.Remove(ctx, "k")

	_, ok := m.Peek(ctx, "k")
	assert.False(t, ok)
	// Removing a missing key is a no-op.
	m.Remove(ctx, "k")
}

func TestMemory_KeysAreIndependentPerMethod(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Put(ctx, Key("u1", "email"), Entry{Code: "111111", ExpiresAt: time.Now().Add(time.Minute)})
	m.Put(ctx, Key("u1", "sms"), Entry{Code: "222222", ExpiresAt: time.Now().Add(time.Minute)})

	_, _ = m.Take(ctx, Key("u1", "email"))

	got, ok := m.Peek(ctx, Key("u1", "sms"))
	require.True(t, ok)
	assert.Equal(t, "222222", got.Code)
}
