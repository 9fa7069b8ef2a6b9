package wiki

import (
	"context"
	"sort"
	"time"

	"FlipDesk/internal/domain/models"
	domrepo "FlipDesk/internal/domain/repository"
)

const mappingKey = "wiki:mapping"

type mappingEntry struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Members bool   `json:"members"`
	Limit   *int64 `json:"limit"`
}

// Mapping returns the item catalog, cached for an hour.
func (c *Client) Mapping(ctx context.Context) ([]models.Item, error) {
	return cached(ctx, c, mappingKey, time.Hour, c.fetchMapping)
}

func (c *Client) fetchMapping(ctx context.Context) ([]models.Item, error) {
	var raw []mappingEntry
	if err := c.get(ctx, "/mapping", nil, &raw); err != nil {
		return nil, err
	}
	items := make([]models.Item, 0, len(raw))
	for _, e := range raw {
		if e.ID <= 0 || e.Name == "" {
			continue
		}
		it := models.Item{ID: e.ID, Name: e.Name}
		if e.Limit != nil {
			it.BuyLimit = *e.Limit
		}
		if e.Members {
			it.Category = "members"
		} else {
			it.Category = "f2p"
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

var _ domrepo.CatalogSource = (*Client)(nil)
