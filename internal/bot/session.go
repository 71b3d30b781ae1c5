package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DialogState is the per-chat position in the reset dialogue.
type DialogState int

const (
	StateIdle DialogState = iota
	StateAwaitingEmail
)

// SessionStore keeps dialogue state per Telegram chat. Chats with no entry
// are idle.
type SessionStore interface {
	State(ctx context.Context, chatID int64) (DialogState, error)
	SetState(ctx context.Context, chatID int64, state DialogState) error
	Clear(ctx context.Context, chatID int64) error
}

type memorySessionStore struct {
	mu     sync.RWMutex
	states map[int64]DialogState
}

// NewMemorySessionStore keeps dialogue state in process memory. State is
// lost on restart, which only costs the user a re-issued /reset.
func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{states: make(map[int64]DialogState)}
}

func (s *memorySessionStore) State(ctx context.Context, chatID int64) (DialogState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[chatID], nil
}

func (s *memorySessionStore) SetState(ctx context.Context, chatID int64, state DialogState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[chatID] = state
	return nil
}

func (s *memorySessionStore) Clear(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, chatID)
	return nil
}

// sessionTTL bounds how long an abandoned dialogue lingers in Redis.
const sessionTTL = 30 * time.Minute

type redisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore keeps dialogue state in Redis so it survives worker
// restarts.
func NewRedisSessionStore(client *redis.Client) SessionStore {
	return &redisSessionStore{client: client}
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("dialog:chat:%d", chatID)
}

func (s *redisSessionStore) State(ctx context.Context, chatID int64) (DialogState, error) {
	val, err := s.client.Get(ctx, sessionKey(chatID)).Int()
	if err == redis.Nil {
		return StateIdle, nil
	}
	if err != nil {
		return StateIdle, err
	}
	return DialogState(val), nil
}

func (s *redisSessionStore) SetState(ctx context.Context, chatID int64, state DialogState) error {
	return s.client.Set(ctx, sessionKey(chatID), int(state), sessionTTL).Err()
}

func (s *redisSessionStore) Clear(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, sessionKey(chatID)).Err()
}
