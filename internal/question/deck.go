package question

import (
	"sync"

	"github.com/gokatarajesh/trivia-night/internal/feed"
)

// Deck is the ordered, index-addressed question list. It is replaced
// wholesale when the source is reloaded.
type Deck struct {
	mu    sync.RWMutex
	items []Definition
}

func NewDeck(items ...Definition) *Deck {
	d := &Deck{}
	d.Replace(items)
	return d
}

// Replace swaps the deck contents.
func (d *Deck) Replace(items []Definition) {
	cp := make([]Definition, len(items))
	copy(cp, items)
	d.mu.Lock()
	d.items = cp
	d.mu.Unlock()
}

// At returns the question at index.
func (d *Deck) At(index int) (Definition, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if index < 0 || index >= len(d.items) {
		return nil, false
	}
	return d.items[index], true
}

func (d *Deck) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.items)
}

// Refs lists round/number pairs in deck order.
func (d *Deck) Refs() []Ref {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Ref, len(d.items))
	for i, q := range d.items {
		h := q.Info()
		out[i] = Ref{Index: i, Round: h.Round, Number: h.Number}
	}
	return out
}

// Apply rebuilds the deck from source rows. The old deck is kept on error.
func (d *Deck) Apply(rows []feed.Row) error {
	items, err := FromRows(rows)
	if err != nil {
		return err
	}
	d.Replace(items)
	return nil
}
