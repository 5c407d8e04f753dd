// Package search ranks station records against a free-text query.
//
// The ranking is a two-tier heuristic, not true edit-distance fuzzy
// matching: exact substring matches come first, and only when those are
// scarce does a character-presence fallback admit likely-typo candidates.
// The fallback ignores character order and multiplicity.
package search

import (
	"sort"
	"strings"

	"github.com/klimakarte/station-map/internal/stations"
)

const (
	// maxResults caps the combined result list.
	maxResults = 15

	// fallbackThreshold: the fuzzy tier is computed only when fewer
	// substring matches than this exist.
	fallbackThreshold = 5

	// charRatioMin is the minimum fraction of query characters that must
	// occur somewhere in a candidate name for the fuzzy tier.
	charRatioMin = 0.7
)

// Rank returns the records matching query, best first. An empty (or
// whitespace-only) query returns no results. Matching is case-insensitive.
//
// Tier A collects names containing the query as a substring. If tier A has
// fewer than five entries, tier B adds remaining names in which at least 70%
// of the distinct query characters occur, relative to query length. The
// combined list is truncated to fifteen entries and stably sorted:
// substring matches before fuzzy ones, shorter names before longer,
// ties keeping their prior relative order.
func Rank(query string, records []stations.StationRecord) []stations.StationRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	matched := make([]stations.StationRecord, 0)
	rest := make([]stations.StationRecord, 0)

	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Name), q) {
			matched = append(matched, r)
		} else {
			rest = append(rest, r)
		}
	}

	if len(matched) < fallbackThreshold {
		for _, r := range rest {
			if charPresenceRatio(q, strings.ToLower(r.Name)) >= charRatioMin {
				matched = append(matched, r)
			}
		}
	}

	if len(matched) > maxResults {
		matched = matched[:maxResults]
	}

	// Re-affirm tier ordering after truncation, then prefer shorter
	// (likely-canonical) names.
	sort.SliceStable(matched, func(i, j int) bool {
		iName := strings.ToLower(matched[i].Name)
		jName := strings.ToLower(matched[j].Name)

		iExact := strings.Contains(iName, q)
		jExact := strings.Contains(jName, q)
		if iExact != jExact {
			return iExact
		}

		return len(iName) < len(jName)
	})

	return matched
}

// charPresenceRatio counts how many distinct characters of query occur
// anywhere in name and divides by the query length.
func charPresenceRatio(query, name string) float64 {
	queryRunes := []rune(query)
	if len(queryRunes) == 0 {
		return 0
	}

	seen := make(map[rune]bool, len(queryRunes))
	hits := 0
	for _, c := range queryRunes {
		if seen[c] {
			continue
		}
		seen[c] = true
		if strings.ContainsRune(name, c) {
			hits++
		}
	}

	return float64(hits) / float64(len(queryRunes))
}
