// Package display holds the dashboard's rendered state: the text of every
// display region, the last-updated label and the error banner list.
//
// A Board is the single display context shared by the poller and the
// renderers. Regions are replaced wholesale; the last write wins.
package display

import (
	"sync"
	"time"
)

// Region is the current content of one display region.
type Region struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Banner is one transient error notification.
type Banner struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	// When is CreatedAt rendered with the board's time format.
	When string `json:"when"`
}

// Snapshot is a point-in-time copy of a Board.
type Snapshot struct {
	Version         uint64            `json:"version"`
	LastUpdated     string            `json:"last_updated"`
	Regions         map[string]Region `json:"regions"`
	Banners         []Banner          `json:"banners"`
	MessagesVisible bool              `json:"messages_visible"`
}

// Board is safe for concurrent use.
type Board struct {
	mu          sync.RWMutex
	version     uint64
	lastUpdated string
	regions     map[string]Region
	order       []string
	banners     []Banner
	visible     bool

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan Snapshot
}

// NewBoard creates a board with the given regions, all empty.
func NewBoard(regionIDs ...string) *Board {
	b := &Board{
		regions: make(map[string]Region, len(regionIDs)),
		order:   append([]string(nil), regionIDs...),
		subs:    make(map[int]chan Snapshot),
	}
	for _, id := range regionIDs {
		b.regions[id] = Region{ID: id}
	}
	return b
}

// RegionIDs returns the region ids in registration order.
func (b *Board) RegionIDs() []string {
	return append([]string(nil), b.order...)
}

// SetRegion replaces the text of region id. It reports false for regions the
// board does not know.
func (b *Board) SetRegion(id, text string) bool {
	b.mu.Lock()
	if _, ok := b.regions[id]; !ok {
		b.mu.Unlock()
		return false
	}
	b.regions[id] = Region{ID: id, Text: text, UpdatedAt: time.Now()}
	b.version++
	b.mu.Unlock()

	b.publish()
	return true
}

// Region returns the current content of region id.
func (b *Board) Region(id string) (Region, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.regions[id]
	return r, ok
}

// SetLastUpdated replaces the last-updated label.
func (b *Board) SetLastUpdated(label string) {
	b.mu.Lock()
	b.lastUpdated = label
	b.version++
	b.mu.Unlock()

	b.publish()
}

// LastUpdated returns the last-updated label.
func (b *Board) LastUpdated() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdated
}

// PrependBanner inserts banner at the top of the message list and makes the
// message container visible.
func (b *Board) PrependBanner(banner Banner) {
	b.mu.Lock()
	b.banners = append([]Banner{banner}, b.banners...)
	b.visible = true
	b.version++
	b.mu.Unlock()

	b.publish()
}

// RemoveBanner deletes the banner with the given id. Removing a banner that
// is already gone is a no-op and reports false.
func (b *Board) RemoveBanner(id string) bool {
	b.mu.Lock()
	idx := -1
	for i, bn := range b.banners {
		if bn.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		return false
	}
	b.banners = append(b.banners[:idx], b.banners[idx+1:]...)
	b.version++
	b.mu.Unlock()

	b.publish()
	return true
}

// Banners returns the banner list, newest first.
func (b *Board) Banners() []Banner {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Banner(nil), b.banners...)
}

// Snapshot returns a copy of the whole board.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked()
}

func (b *Board) snapshotLocked() Snapshot {
	regions := make(map[string]Region, len(b.regions))
	for id, r := range b.regions {
		regions[id] = r
	}
	return Snapshot{
		Version:         b.version,
		LastUpdated:     b.lastUpdated,
		Regions:         regions,
		Banners:         append([]Banner{}, b.banners...),
		MessagesVisible: b.visible,
	}
}
