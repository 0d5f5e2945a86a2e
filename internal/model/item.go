package model

import "time"

// Item is the domain model for a todo entry.
// ID is the creation time in Unix milliseconds and doubles as the key.
type Item struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// NewItem builds a pending item stamped with now. The text is kept as
// given. Two items created within the same millisecond share an id.
func NewItem(text string, now time.Time) Item {
	return Item{
		ID:   now.UnixMilli(),
		Text: text,
	}
}

// CreatedAt recovers the creation time from the id.
func (it Item) CreatedAt() time.Time {
	return time.UnixMilli(it.ID)
}

// Toggled returns a copy with Done flipped.
func (it Item) Toggled() Item {
	it.Done = !it.Done
	return it
}
