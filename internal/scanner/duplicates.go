package scanner

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dverbeek/sweeper/internal/classify"
	"github.com/dverbeek/sweeper/pkg/utils"
)

// findDuplicates groups candidate files into byte-identical sets. It runs
// in two stages: bucket by exact size first, then fingerprint only the
// files whose size bucket has more than one member. Hashing is fanned out
// across a bounded worker pool.
func (s *Scanner) findDuplicates(ctx context.Context, candidates []ScanItem) []DuplicateGroup {
	bySize := make(map[int64][]ScanItem)
	for _, c := range candidates {
		bySize[c.Size] = append(bySize[c.Size], c)
	}

	var toHash []ScanItem
	for _, bucket := range bySize {
		if len(bucket) > 1 {
			toHash = append(toHash, bucket...)
		}
	}
	if len(toHash) == 0 {
		return nil
	}

	type hashed struct {
		item        ScanItem
		fingerprint string
	}

	var (
		mu      sync.Mutex
		results []hashed
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.hashWorkers)
	for _, item := range toHash {
		item := item
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			fp, err := utils.FingerprintFile(item.Path)
			if err != nil {
				log.Debug().Err(err).Str("path", item.Path).Msg("skipping unreadable duplicate candidate")
				return nil
			}
			mu.Lock()
			results = append(results, hashed{item: item, fingerprint: fp})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("duplicate detection interrupted")
	}

	byFingerprint := make(map[string][]ScanItem)
	for _, h := range results {
		byFingerprint[h.fingerprint] = append(byFingerprint[h.fingerprint], h.item)
	}

	var groups []DuplicateGroup
	for fp, members := range byFingerprint {
		if len(members) < 2 {
			continue
		}
		sortGroupMembers(members)
		kept := members[0]
		kept.ID = ""
		group := DuplicateGroup{
			Fingerprint: fp,
			Size:        kept.Size,
			Kept:        kept,
		}
		for _, m := range members[1:] {
			item := NewScanItem(m.Path, m.Name, classify.CategoryDuplicate, classify.RiskDuplicate, m.Size, m.ModTime, false)
			item.Reason = "identical to " + kept.Path
			group.Redundant = append(group.Redundant, item)
			group.Reclaimable += m.Size
		}
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Reclaimable != groups[j].Reclaimable {
			return groups[i].Reclaimable > groups[j].Reclaimable
		}
		return groups[i].Kept.Path < groups[j].Kept.Path
	})
	return groups
}

// sortGroupMembers orders a duplicate set so the member to keep comes
// first: the oldest modification time wins, with the lexically smallest
// path as the deterministic tie-break.
func sortGroupMembers(members []ScanItem) {
	sort.Slice(members, func(i, j int) bool {
		if !members[i].ModTime.Equal(members[j].ModTime) {
			return members[i].ModTime.Before(members[j].ModTime)
		}
		return members[i].Path < members[j].Path
	})
}
