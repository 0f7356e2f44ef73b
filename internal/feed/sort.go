package feed

import "strings"

// Sort is a feed ordering
type Sort int

// Feed orderings. SortNewest is the default.
const (
	SortNewest Sort = iota
	SortOldest
	SortMostLiked
)

// ParseSort maps a sort name to a Sort, ignoring case. Unknown or empty
// names resolve to SortNewest.
func ParseSort(s string) Sort {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "oldest":
		return SortOldest
	case "mostliked":
		return SortMostLiked
	default:
		return SortNewest
	}
}

func (s Sort) String() string {
	switch s {
	case SortOldest:
		return "oldest"
	case SortMostLiked:
		return "mostLiked"
	default:
		return "newest"
	}
}
