package app

import (
	"sync"

	"edulearn-quiz-service/internal/domain"
)

// ProgressFeed fans out updated stats to a user's live subscribers.
type ProgressFeed struct {
	mu          sync.Mutex
	subscribers map[string]map[chan domain.UserStats]struct{}
}

func NewProgressFeed() *ProgressFeed {
	return &ProgressFeed{subscribers: make(map[string]map[chan domain.UserStats]struct{})}
}

// Subscribe registers a channel for userID, primed with initial.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *ProgressFeed) Subscribe(userID string, initial domain.UserStats) (<-chan domain.UserStats, func()) {
	ch := make(chan domain.UserStats, 4)
	ch <- initial.Clone()

	f.mu.Lock()
	subs, ok := f.subscribers[userID]
	if !ok {
		subs = make(map[chan domain.UserStats]struct{})
		f.subscribers[userID] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs, ok := f.subscribers[userID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(f.subscribers, userID)
		}
	}
	return ch, cancel
}

// Publish delivers stats to every subscriber of userID. A full subscriber
// loses its oldest pending update instead of blocking the publisher.
func (f *ProgressFeed) Publish(userID string, stats domain.UserStats) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for ch := range f.subscribers[userID] {
		snapshot := stats.Clone()
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

// Subscribers reports how many live subscriptions userID has.
func (f *ProgressFeed) Subscribers(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers[userID])
}
