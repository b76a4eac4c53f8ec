package endpoint

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Novelty tracks which (method, path, status) combinations have been seen,
// so discovery logging and metrics fire only on first sighting. A Bloom
// filter answers the common "seen before" case without touching the exact
// set; the exact set settles false positives.
type Novelty struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

// NewNovelty creates a novelty tracker sized for the estimated number of
// distinct keys.
func NewNovelty(estimatedKeys int) *Novelty {
	if estimatedKeys < 1000 {
		estimatedKeys = 1000
	}
	return &Novelty{
		filter: bloom.NewWithEstimates(uint(estimatedKeys), 0.001),
		exact:  make(map[string]struct{}),
	}
}

// FirstSighting records the key and reports whether it was new.
func (n *Novelty) FirstSighting(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.filter.TestString(key) {
		if _, exists := n.exact[key]; exists {
			return false
		}
	}
	n.filter.AddString(key)
	n.exact[key] = struct{}{}
	return true
}

// Count returns the number of distinct keys seen.
func (n *Novelty) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.exact)
}

// Reset forgets everything.
func (n *Novelty) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.filter.ClearAll()
	n.exact = make(map[string]struct{})
}
