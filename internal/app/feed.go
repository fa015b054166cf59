package app

import (
	"sync"

	"quiz-eval-service/internal/domain"
)

// ResultsFeed fans newly recorded attempts out to live subscribers.
type ResultsFeed struct {
	mu          sync.Mutex
	subscribers map[chan domain.AttemptSummary]struct{}
}

func NewResultsFeed() *ResultsFeed {
	return &ResultsFeed{subscribers: make(map[chan domain.AttemptSummary]struct{})}
}

// Subscribe returns a channel of attempt summaries.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *ResultsFeed) Subscribe() (<-chan domain.AttemptSummary, func()) {
	ch := make(chan domain.AttemptSummary, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish never blocks: a full subscriber buffer loses its oldest entry.
func (f *ResultsFeed) Publish(summary domain.AttemptSummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- summary:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- summary
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (f *ResultsFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}
