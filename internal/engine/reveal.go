package engine

import (
	"sync"
	"time"

	"roastbattle/backend/internal/clock"
)

// revealer plays the per-character typing animation. One reveal runs per
// message id; starting again with different content restarts from empty.
type revealer struct {
	clock    clock.Clock
	interval time.Duration

	mu     sync.Mutex
	active map[string]*reveal
}

type reveal struct {
	content []rune
	shown   int
	timer   clock.Timer
}

func newRevealer(c clock.Clock, interval time.Duration) *revealer {
	return &revealer{clock: c, interval: interval, active: map[string]*reveal{}}
}

func (r *revealer) start(messageID, content string, animated bool, onProgress func(id string, shown int), onDone func(id string)) {
	runes := []rune(content)
	if !animated || r.interval <= 0 || len(runes) == 0 {
		onDone(messageID)
		return
	}

	r.mu.Lock()
	if current, ok := r.active[messageID]; ok {
		if string(current.content) == content {
			r.mu.Unlock()
			return
		}
		if current.timer != nil {
			current.timer.Stop()
		}
	}
	rv := &reveal{content: runes}
	r.active[messageID] = rv
	r.scheduleLocked(messageID, rv, onProgress, onDone)
	r.mu.Unlock()
}

func (r *revealer) scheduleLocked(messageID string, rv *reveal, onProgress func(string, int), onDone func(string)) {
	rv.timer = r.clock.AfterFunc(r.interval, func() {
		r.mu.Lock()
		if r.active[messageID] != rv {
			r.mu.Unlock()
			return
		}
		rv.shown++
		shown := rv.shown
		finished := shown >= len(rv.content)
		if finished {
			delete(r.active, messageID)
		} else {
			r.scheduleLocked(messageID, rv, onProgress, onDone)
		}
		r.mu.Unlock()

		onProgress(messageID, shown)
		if finished {
			onDone(messageID)
		}
	})
}

// stopAll abandons every reveal without completing it.
func (r *revealer) stopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rv := range r.active {
		if rv.timer != nil {
			rv.timer.Stop()
		}
		delete(r.active, id)
	}
}
