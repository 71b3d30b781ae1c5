package bot

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStoreDefaultsToIdle(t *testing.T) {
	s := NewMemorySessionStore()

	state, err := s.State(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, state)
}

func TestMemorySessionStoreRoundTrip(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, s.SetState(ctx, 42, StateAwaitingEmail))

	state, err := s.State(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingEmail, state)

	require.NoError(t, s.Clear(ctx, 42))

	state, err = s.State(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, state)
}

func TestMemorySessionStoreConcurrentAccess(t *testing.T) {
	s := NewMemorySessionStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			assert.NoError(t, s.SetState(ctx, chatID, StateAwaitingEmail))
			_, err := s.State(ctx, chatID)
			assert.NoError(t, err)
			assert.NoError(t, s.Clear(ctx, chatID))
		}(int64(i))
	}
	wg.Wait()
}
