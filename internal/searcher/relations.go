package searcher

import (
	"context"
	"fmt"
	"sort"

	"github.com/dshills/dictpress/pkg/types"
)

// LoadRelations attaches the relations matching rq to entries. Each entry's
// TotalRelations is the number of matching relations before the per-type
// limit is applied.
func (s *Searcher) LoadRelations(ctx context.Context, entries []types.Entry, rq types.RelationsQuery) error {
	if len(entries) == 0 {
		return nil
	}

	ids := make([]int64, len(entries))
	index := make(map[int64]int, len(entries))
	for i := range entries {
		ids[i] = entries[i].ID
		index[entries[i].ID] = i
		entries[i].Relations = nil
		entries[i].TotalRelations = 0
	}

	rows, err := s.store.LoadRelations(ctx, ids, rq)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrBackend, err)
	}

	for _, row := range rows {
		i, ok := index[row.FromID]
		if !ok {
			continue
		}
		rel := row.Relation
		rel.Entry = row.Entry
		rel.Entry.Content = truncate(rel.Entry.Content, rq.MaxContentItems)
		entries[i].Relations = append(entries[i].Relations, rel)
	}

	for i := range entries {
		entries[i].TotalRelations = len(entries[i].Relations)
		entries[i].Relations = limitPerType(entries[i].Relations, rq.MaxPerType)
	}
	return nil
}

// limitPerType keeps, in ascending weight order, at most max relations of
// each type. A relation with several types counts against all of them and is
// kept while any of them is under the limit. Untyped relations share one
// bucket. max <= 0 keeps everything.
func limitPerType(rels []types.Relation, max int) []types.Relation {
	sort.SliceStable(rels, func(i, j int) bool {
		return rels[i].Weight < rels[j].Weight
	})
	if max <= 0 {
		return rels
	}

	counts := make(map[string]int)
	out := rels[:0]
	for _, r := range rels {
		buckets := []string(r.Types)
		if len(buckets) == 0 {
			buckets = []string{""}
		}

		keep := false
		for _, t := range buckets {
			if counts[t] < max {
				keep = true
				break
			}
		}
		if !keep {
			continue
		}
		for _, t := range buckets {
			counts[t]++
		}
		out = append(out, r)
	}
	return out
}

func truncate(content types.Strings, max int) types.Strings {
	if max <= 0 || len(content) <= max {
		return content
	}
	return content[:max]
}
