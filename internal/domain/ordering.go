package domain

import "sort"

// Ahead reports whether a ranks strictly better than b: higher score first,
// then higher percentage, then the earlier submission (smaller id).
// Distinct ids never compare equal, so records form a total order.
func Ahead(a, b ScoreRecord) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Percentage != b.Percentage {
		return a.Percentage > b.Percentage
	}
	return a.ID < b.ID
}

// SortRecords orders records best first.
func SortRecords(records []ScoreRecord) {
	sort.Slice(records, func(i, j int) bool {
		return Ahead(records[i], records[j])
	})
}
