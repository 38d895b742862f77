package channels

import (
	"container/list"
	"sync"

	"github.com/haasonsaas/stark/pkg/models"
)

// DefaultDedupeCapacity is the façade's default bound on tracked
// (channel_type, platform_message_id) pairs (§4.10: "a bounded LRU
// (default 10k)").
const DefaultDedupeCapacity = 10000

// dedupeKey returns the stable dedup key for one platform message.
func dedupeKey(channelType models.ChannelType, platformMessageID string) string {
	return string(channelType) + ":" + platformMessageID
}

// Dedupe is a bounded least-recently-used set of seen message keys. Seen
// returns false the first time a key is observed and true on every repeat
// while the key is still resident; once the set is over capacity the
// least-recently-touched key is evicted to make room.
type Dedupe struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

// NewDedupe returns a Dedupe bounded at capacity entries. capacity <= 0
// falls back to DefaultDedupeCapacity.
func NewDedupe(capacity int) *Dedupe {
	if capacity <= 0 {
		capacity = DefaultDedupeCapacity
	}
	return &Dedupe{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Seen reports whether (channelType, platformMessageID) has already been
// recorded. A message with an empty platformMessageID is never considered
// a duplicate, since some adapters cannot supply a stable id.
func (d *Dedupe) Seen(channelType models.ChannelType, platformMessageID string) bool {
	if platformMessageID == "" {
		return false
	}
	key := dedupeKey(channelType, platformMessageID)

	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.index[key]; ok {
		d.order.MoveToFront(el)
		return true
	}

	el := d.order.PushFront(key)
	d.index[key] = el

	for d.order.Len() > d.capacity {
		oldest := d.order.Back()
		if oldest == nil {
			break
		}
		d.order.Remove(oldest)
		delete(d.index, oldest.Value.(string))
	}

	return false
}

// Len returns the number of keys currently tracked.
func (d *Dedupe) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}
