package marketfeeds

import (
	"sync"

	"github.com/Aidin1998/pincex_mockfeed/pkg/models"
)

// quoteQueue is the hand-off between the tick task and the flush task
type quoteQueue struct {
	mu      sync.Mutex
	pending []models.Quote
}

func (q *quoteQueue) enqueue(quote models.Quote) {
	q.mu.Lock()
	q.pending = append(q.pending, quote)
	q.mu.Unlock()
}

// drain empties the queue and keeps the last quote enqueued per symbol,
// ordered by each symbol's first appearance. It also returns how many
// quotes were queued before deduplication.
func (q *quoteQueue) drain() ([]models.Quote, int) {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(pending) == 0 {
		return nil, 0
	}
	index := make(map[string]int, len(pending))
	out := make([]models.Quote, 0, len(pending))
	for _, quote := range pending {
		if i, ok := index[quote.Symbol]; ok {
			out[i] = quote
			continue
		}
		index[quote.Symbol] = len(out)
		out = append(out, quote)
	}
	return out, len(pending)
}
