package mosques

import (
	"strings"
	"unicode"

	"github.com/muazhazali/lepakmasjid/internal/apperrors"
	"github.com/muazhazali/lepakmasjid/internal/models"
	"github.com/muazhazali/lepakmasjid/internal/recordsource"
)

// Sort modes accepted in Query.SortBy. Anything else sorts newest first.
const (
	SortAlphabetical  = "alphabetical"
	SortMostAmenities = "most_amenities"
	SortNearest       = "nearest"
)

const (
	// AllStates disables the state filter.
	AllStates = "all"

	defaultPerPage  = 12
	maxSearchLength = 100
	// minWindow is the smallest number of rows read before client-side filtering.
	minWindow = 50
	// allModePerPage is the page size used when walking every page.
	allModePerPage = 100
)

// Query is the public filter set of the mosque listing.
type Query struct {
	State     string   `form:"state"`
	Amenities []string `form:"-"`
	Search    string   `form:"search"`
	SortBy    string   `form:"sortBy"`
	Page      int      `form:"page"`
	PerPage   int      `form:"perPage"`
}

// Page is one page of the filtered listing.
type Page struct {
	Items      []models.Mosque `json:"items"`
	Page       int             `json:"page"`
	PerPage    int             `json:"perPage"`
	TotalItems int             `json:"totalItems"`
	TotalPages int             `json:"totalPages"`
}

// normalized is a validated Query with defaults applied.
type normalized struct {
	state     string
	amenities []string
	search    string
	sortBy    string
	page      int
	perPage   int
}

func (q Query) normalize() (normalized, error) {
	n := normalized{
		sortBy:  q.SortBy,
		page:    q.Page,
		perPage: q.PerPage,
	}
	if n.page < 1 {
		n.page = 1
	}
	if n.perPage < 1 {
		n.perPage = defaultPerPage
	}
	if n.perPage > recordsource.MaxPerPage {
		n.perPage = recordsource.MaxPerPage
	}

	if q.State != "" && q.State != AllStates {
		if !models.IsValidState(q.State) {
			return normalized{}, apperrors.InvalidParameter("Invalid state parameter")
		}
		n.state = q.State
	}

	for _, id := range q.Amenities {
		if id = strings.TrimSpace(id); id != "" {
			n.amenities = append(n.amenities, id)
		}
	}

	n.search = SanitizeSearch(q.Search)
	return n, nil
}

// needsAmenitiesEarly reports whether amenities must be attached before sorting.
func (n normalized) needsAmenitiesEarly() bool {
	return len(n.amenities) > 0 || n.sortBy == SortMostAmenities
}

// filter builds the Record Source filter: the state equality and a search over
// name, address and state.
func (n normalized) filter() recordsource.Expr {
	var parts []recordsource.Expr
	if n.state != "" {
		parts = append(parts, recordsource.Eq("state", n.state))
	}
	if n.search != "" {
		parts = append(parts, recordsource.Or{
			recordsource.Like("name", n.search),
			recordsource.Like("address", n.search),
			recordsource.Like("state", n.search),
		})
	}
	return recordsource.AllOf(parts...)
}

// serverSort is the sort requested from the Record Source. most_amenities
// depends on data the source does not have.
func (n normalized) serverSort() string {
	switch n.sortBy {
	case SortMostAmenities:
		return ""
	case SortAlphabetical:
		return "name"
	default:
		return "-created"
	}
}

// window is the number of leading rows read in paged mode.
func (n normalized) window() int {
	return max(n.perPage*2*n.page, minWindow)
}

// SanitizeSearch removes every character that is meaningful to a filter
// expression, collapses whitespace and truncates to 100 characters.
func SanitizeSearch(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune("\"'\\`()&|=~!<>%;", r):
			continue
		case unicode.IsControl(r) && !unicode.IsSpace(r):
			continue
		}
		b.WriteRune(r)
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	if runes := []rune(out); len(runes) > maxSearchLength {
		out = strings.TrimSpace(string(runes[:maxSearchLength]))
	}
	return out
}

// ParseAmenityList splits a comma separated amenity id list.
func ParseAmenityList(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(csv, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
