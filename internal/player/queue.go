package player

import (
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/mikey-austin/media_session/pkg/msp"
)

// Queue holds the items waiting to be played. With shuffle enabled the
// remaining entries are visited in a random order.
type Queue struct {
	mu       sync.Mutex
	revision int64
	index    int
	entries  []msp.MediaItem
	order    []int
	shuffle  bool
}

// QueueState summarizes the queue.
type QueueState struct {
	Revision int64 `json:"revision"`
	Length   int   `json:"length"`
	Index    int   `json:"index"`
	Shuffle  bool  `json:"shuffle"`
}

// Add appends items to the end of the queue.
func (q *Queue) Add(items []msp.MediaItem) {
	q.mu.Lock()
	defer q.mu.Unlock()

	start := len(q.entries)
	q.entries = append(q.entries, items...)
	added := make([]int, 0, len(items))
	for i := range items {
		added = append(added, start+i)
	}
	if q.shuffle {
		rand.Shuffle(len(added), func(i, j int) { added[i], added[j] = added[j], added[i] })
	}
	q.order = append(q.order, added...)
	q.revision++
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = nil
	q.order = nil
	q.index = 0
	q.revision++
}

// Current returns the entry at the play position.
func (q *Queue) Current() (msp.MediaItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.index < 0 || q.index >= len(q.order) {
		return msp.MediaItem{}, false
	}
	return q.entries[q.order[q.index]], true
}

// Next advances the play position and returns the new current entry.
func (q *Queue) Next() (msp.MediaItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.index+1 >= len(q.order) {
		return msp.MediaItem{}, false
	}
	q.index++
	q.revision++
	return q.entries[q.order[q.index]], true
}

// SetShuffle switches shuffle mode. Entries after the current one are
// reordered; the current entry stays in place.
func (q *Queue) SetShuffle(shuffle bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.shuffle = shuffle
	if len(q.order) > 0 {
		rest := q.order[min(q.index+1, len(q.order)):]
		if shuffle {
			rand.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
		} else {
			slices.Sort(rest)
		}
	}
	q.revision++
}

// Items returns the queued items in play order.
func (q *Queue) Items() []msp.MediaItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]msp.MediaItem, 0, len(q.order))
	for _, idx := range q.order {
		out = append(out, q.entries[idx])
	}
	return out
}

// Summary returns the queue summary.
func (q *Queue) Summary() QueueState {
	q.mu.Lock()
	defer q.mu.Unlock()

	return QueueState{Revision: q.revision, Length: len(q.entries), Index: q.index, Shuffle: q.shuffle}
}
