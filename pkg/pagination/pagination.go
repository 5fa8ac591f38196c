package pagination

import (
	"strconv"
	"strings"
)

const (
	// DefaultPage is used when page is missing or unusable.
	DefaultPage = 1
	// DefaultLimit is the page size when a limit is not provided.
	DefaultLimit = 100
)

// Params is a page-number window over an ordered result set.
type Params struct {
	Page  int
	Limit int
}

// Parse reads raw page/limit query values. Missing, non-numeric or
// non-positive values fall back to the defaults. There is no upper bound on
// page; paging past the end yields an empty window.
func Parse(rawPage, rawLimit string) Params {
	return Params{
		Page:  positiveOr(rawPage, DefaultPage),
		Limit: positiveOr(rawLimit, DefaultLimit),
	}
}

// Offset is the number of rows skipped before the window starts.
func (p Params) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

func positiveOr(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
