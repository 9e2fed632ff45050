// Path: internal/pipeline/dedupe.go
package pipeline

import "viral-scout/internal/domain"

// UniqueSet is an identity-keyed set of items that remembers insertion order.
type UniqueSet struct {
	order []string
	byID  map[string]domain.RawItem
}

// Dedupe merges per-query results in query order. The first occurrence of
// an identity wins, including its term; later duplicates are dropped.
func Dedupe(results []PerQueryResult) *UniqueSet {
	u := &UniqueSet{byID: make(map[string]domain.RawItem)}
	for _, r := range results {
		for _, item := range r.Items {
			if item.ID == "" {
				continue
			}
			if _, seen := u.byID[item.ID]; seen {
				continue
			}
			item.Term = r.Term
			u.byID[item.ID] = item
			u.order = append(u.order, item.ID)
		}
	}
	return u
}

// Len is the number of unique identities.
func (u *UniqueSet) Len() int { return len(u.order) }

// Get returns the item stored for id.
func (u *UniqueSet) Get(id string) (domain.RawItem, bool) {
	item, ok := u.byID[id]
	return item, ok
}

// Items returns the unique items in first-seen order.
func (u *UniqueSet) Items() []domain.RawItem {
	items := make([]domain.RawItem, len(u.order))
	for i, id := range u.order {
		items[i] = u.byID[id]
	}
	return items
}
