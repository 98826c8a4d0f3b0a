package item

import (
	"bytes"
	"context"
	"sort"

	"stockforge/internal/core/id"
)

// LockAll acquires row locks on every listed item in a deterministic order
// (sorted by id bytes), so two compound operations touching overlapping item
// sets can never deadlock. Duplicate ids are locked once.
// Must be called inside a transaction.
func LockAll(ctx context.Context, repo Repository, ids []id.ID) (map[id.ID]*StockItem, error) {
	unique := make([]id.ID, 0, len(ids))
	seen := make(map[id.ID]struct{}, len(ids))
	for _, itemID := range ids {
		if _, ok := seen[itemID]; ok {
			continue
		}
		seen[itemID] = struct{}{}
		unique = append(unique, itemID)
	}

	sort.Slice(unique, func(i, j int) bool {
		return bytes.Compare(unique[i][:], unique[j][:]) < 0
	})

	locked := make(map[id.ID]*StockItem, len(unique))
	for _, itemID := range unique {
		it, err := repo.GetForUpdate(ctx, itemID)
		if err != nil {
			return nil, err
		}
		locked[itemID] = it
	}
	return locked, nil
}
