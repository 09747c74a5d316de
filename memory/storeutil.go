package memory

import (
	"math"
	"sort"
)

// Helpers shared by Store implementations.

// SortResults orders results by ascending distance, newer records first on ties.
func SortResults(results []RecallResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Record.CreatedAt.After(results[j].Record.CreatedAt)
	})
}

// ComputeStats summarizes records.
func ComputeStats(records []Record) Stats {
	var st Stats
	if len(records) == 0 {
		return st
	}
	var sum float64
	for _, r := range records {
		sum += r.Importance
		if st.Oldest.IsZero() || r.CreatedAt.Before(st.Oldest) {
			st.Oldest = r.CreatedAt
		}
		if r.CreatedAt.After(st.Newest) {
			st.Newest = r.CreatedAt
		}
	}
	st.Count = len(records)
	st.MeanImportance = sum / float64(len(records))
	return st
}

// SortNewestFirst orders records by descending CreatedAt, then descending ID.
func SortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
}

// SelectExpired returns the records policy deletes: those created before
// Now-MaxAge together with those beyond the newest MaxEntries. Both
// conditions are evaluated on the same snapshot.
func SelectExpired(records []Record, policy PrunePolicy) []Record {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	SortNewestFirst(sorted)

	var expired []Record
	for i, r := range sorted {
		overCount := policy.MaxEntries > 0 && i >= policy.MaxEntries
		tooOld := policy.MaxAge > 0 && r.CreatedAt.Before(policy.Now.Add(-policy.MaxAge))
		if overCount || tooOld {
			expired = append(expired, r)
		}
	}
	return expired
}

// CosineDistance returns 1 - cos(a, b). Zero vectors are at distance 1.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
