package harvester

import (
	"context"
	"fmt"
)

// Plan statuses
const (
	StatusProcessed  = "processed"
	StatusInConsumer = "in_consumer"
	StatusStored     = "stored"
	StatusNew        = "new"
)

// PlanEntry is the dedup verdict for one listed item
type PlanEntry struct {
	ID     string
	Title  string
	Status string
}

// Plan lists one page and reports what a run would do with each item
// without downloading, adding or touching the ledger. A page below 1
// means the ledger cursor.
func (h *Harvester) Plan(ctx context.Context, page int) ([]PlanEntry, error) {
	if page < 1 {
		page = h.ledger.NextPage()
	}

	items, err := h.catalog.FetchPage(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}

	entries := make([]PlanEntry, 0, len(items))
	for _, item := range items {
		id := item.ID.String()
		entry := PlanEntry{ID: id, Title: item.Title, Status: StatusNew}

		switch {
		case h.ledger.IsProcessed(id):
			entry.Status = StatusProcessed
		case h.inInventory(ctx, h.logger, id):
			entry.Status = StatusInConsumer
		default:
			if ok, err := h.store.Exists(ctx, h.store.Key(id)); err == nil && ok {
				entry.Status = StatusStored
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
