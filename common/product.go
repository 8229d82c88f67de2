package common

import (
	"time"
)

// ProductID is the identifier of a product in the archive (scihub uuid)
type ProductID string

// Product is a scene returned by the catalog
type Product struct {
	ID         ProductID         `json:"id"`
	Name       string            `json:"name"` // e.g. S2B_MSIL2A_20190108T104429_N0211_R008_T32UNF_20190108T124859
	Date       time.Time         `json:"date"`
	CloudCover float64           `json:"cloud_cover"`
	Size       string            `json:"size,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// ProductSet is a set of ProductID that remembers the insertion order
type ProductSet struct {
	ids   []ProductID
	index map[ProductID]struct{}
}

// NewProductSet creates a set with the given ids (duplicates are ignored)
func NewProductSet(ids ...ProductID) *ProductSet {
	ps := &ProductSet{index: make(map[ProductID]struct{}, len(ids))}
	for _, id := range ids {
		ps.Push(id)
	}
	return ps
}

// Push adds the id to the set if not already exists
func (ps *ProductSet) Push(id ProductID) {
	if ps.index == nil {
		ps.index = map[ProductID]struct{}{}
	}
	if _, ok := ps.index[id]; ok {
		return
	}
	ps.index[id] = struct{}{}
	ps.ids = append(ps.ids, id)
}

// Exists returns true if the id is in the set
func (ps *ProductSet) Exists(id ProductID) bool {
	_, ok := ps.index[id]
	return ok
}

// Len returns the number of ids
func (ps *ProductSet) Len() int {
	return len(ps.ids)
}

// Slice returns a copy of the ids, in insertion order
func (ps *ProductSet) Slice() []ProductID {
	return append([]ProductID(nil), ps.ids...)
}

// Minus returns the ids of the set that are not in other, in insertion order
func (ps *ProductSet) Minus(other *ProductSet) []ProductID {
	var ids []ProductID
	for _, id := range ps.ids {
		if other == nil || !other.Exists(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// IDs returns the ids of the products
func IDs(products []Product) []ProductID {
	ids := make([]ProductID, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return ids
}
