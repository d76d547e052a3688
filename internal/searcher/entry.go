package searcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/dictpress/pkg/types"
)

// Entry fetches one entry by id or guid with all of its relations
func (s *Searcher) Entry(ctx context.Context, id int64, guid string, admin bool) (*types.Entry, error) {
	if id <= 0 && guid == "" {
		return nil, types.Validationf("id or guid is required")
	}

	e, err := s.store.GetEntry(ctx, id, guid)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", types.ErrBackend, err)
	}

	status := types.StatusEnabled
	if admin {
		status = ""
	}
	entries := []types.Entry{*e}
	if err := s.LoadRelations(ctx, entries, types.RelationsQuery{Status: status}); err != nil {
		return nil, err
	}
	if !admin {
		if entries[0].Status != types.StatusEnabled {
			return nil, types.ErrNotFound
		}
		redact(entries)
	}
	return &entries[0], nil
}
