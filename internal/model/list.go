package model

// List is an ordered sequence of items; insertion order is display order.
// Every operation returns a fresh slice so callers can hand the result
// straight to the store without aliasing the previous state.
type List []Item

// Append returns the list with it added at the end.
func (l List) Append(it Item) List {
	out := make(List, 0, len(l)+1)
	out = append(out, l...)
	return append(out, it)
}

// Without returns the list minus every item with the given id.
func (l List) Without(id int64) List {
	out := make(List, 0, len(l))
	for _, it := range l {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}

// Replace swaps in item for the entry sharing its id.
// The second result reports whether a match was found; when it is false
// the returned list equals l.
func (l List) Replace(item Item) (List, bool) {
	out := make(List, len(l))
	copy(out, l)
	for i := range out {
		if out[i].ID == item.ID {
			out[i] = item
			return out, true
		}
	}
	return out, false
}

// Find looks up an item by id.
func (l List) Find(id int64) (Item, bool) {
	for _, it := range l {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Stats counts done and pending items.
func (l List) Stats() (done, pending int) {
	for _, it := range l {
		if it.Done {
			done++
		} else {
			pending++
		}
	}
	return
}

// Equal reports whether both lists hold the same items in the same order.
func (l List) Equal(other List) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if l[i] != other[i] {
			return false
		}
	}
	return true
}
