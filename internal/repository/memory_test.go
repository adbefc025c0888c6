package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"crisis-assistant/internal/domain"
)

func withClock(t *testing.T, start time.Time) *time.Time {
	t.Helper()
	cur := start
	prev := now
	now = func() time.Time { return cur }
	t.Cleanup(func() { now = prev })
	return &cur
}

func TestMemoryStore_UnknownSessionIsIdle(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	st, err := s.GetState(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, domain.NewDialogueState("abc"), st)
	require.False(t, st.Awaiting())
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	st := domain.NewDialogueState("abc")
	st.Remember(domain.TopicEnergy)
	st.Turns = 3
	require.NoError(t, s.SaveState(context.Background(), st))

	got, err := s.GetState(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, domain.TopicEnergy, got.LastTopic)
	require.Equal(t, 3, got.Turns)
}

func TestMemoryStore_Expiry(t *testing.T) {
	clock := withClock(t, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	s := NewMemoryStore(10 * time.Minute)

	st := domain.NewDialogueState("abc")
	st.Remember(domain.TopicWater)
	require.NoError(t, s.SaveState(context.Background(), st))

	*clock = clock.Add(9 * time.Minute)
	got, err := s.GetState(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, domain.TopicWater, got.LastTopic)

	*clock = clock.Add(2 * time.Minute)
	got, err = s.GetState(context.Background(), "abc")
	require.NoError(t, err)
	require.False(t, got.Awaiting())
	require.Zero(t, s.Len())
}

func TestMemoryStore_SaveEvictsExpired(t *testing.T) {
	clock := withClock(t, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	s := NewMemoryStore(time.Minute)
	require.NoError(t, s.SaveState(context.Background(), domain.NewDialogueState("old")))

	*clock = clock.Add(2 * time.Minute)
	require.NoError(t, s.SaveState(context.Background(), domain.NewDialogueState("new")))

	s.mu.Lock()
	_, ok := s.sessions["old"]
	s.mu.Unlock()
	require.False(t, ok)
	require.Equal(t, 1, s.Len())
}

func TestMemoryStore_DefaultTTL(t *testing.T) {
	require.Equal(t, 30*time.Minute, NewMemoryStore(0).ttl)
}

func TestMemoryStore_EmptySessionID(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	_, err := s.GetState(context.Background(), " ")
	require.Error(t, err)
	require.Error(t, s.SaveState(context.Background(), domain.DialogueState{}))
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s-%d", i)
			st := domain.NewDialogueState(id)
			st.Remember(domain.TopicFood)
			require.NoError(t, s.SaveState(context.Background(), st))
			got, err := s.GetState(context.Background(), id)
			require.NoError(t, err)
			require.Equal(t, domain.TopicFood, got.LastTopic)
		}(i)
	}
	wg.Wait()
	require.Equal(t, 50, s.Len())
}
