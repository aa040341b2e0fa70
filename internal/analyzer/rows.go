package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"why/internal/manifest"
)

// SortBy orders Analysis rows.
type SortBy string

const (
	SortByName       SortBy = "name"
	SortByUsage      SortBy = "usage"
	SortByImportance SortBy = "importance"
	SortByClass      SortBy = "class"
	SortByRemovable  SortBy = "removable"
)

// Filter selects Analysis rows.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterRuntime   Filter = "runtime"
	FilterDev       Filter = "dev"
	FilterBuild     Filter = "build"
	FilterUnused    Filter = "unused"
	FilterRemovable Filter = "removable"
)

// ParseSortBy validates a sort key; "" selects name.
func ParseSortBy(s string) (SortBy, error) {
	switch v := SortBy(strings.ToLower(s)); v {
	case "":
		return SortByName, nil
	case SortByName, SortByUsage, SortByImportance, SortByClass, SortByRemovable:
		return v, nil
	default:
		return "", fmt.Errorf("unknown sort key %q (want name, usage, importance, class or removable)", s)
	}
}

// ParseFilter validates a filter; "" selects all.
func ParseFilter(s string) (Filter, error) {
	switch v := Filter(strings.ToLower(s)); v {
	case "":
		return FilterAll, nil
	case FilterAll, FilterRuntime, FilterDev, FilterBuild, FilterUnused, FilterRemovable:
		return v, nil
	default:
		return "", fmt.Errorf("unknown filter %q (want all, runtime, dev, build, unused or removable)", s)
	}
}

var classRank = map[manifest.Class]int{
	manifest.Runtime:     0,
	manifest.BuildTime:   1,
	manifest.Development: 2,
}

// SortRows sorts rows in place. Every key falls back to name, so the order
// is total.
//   - usage: most files first
//   - importance: highest score first
//   - class: runtime, build, development
//   - removable: removal candidates first, least important first
func SortRows(rows []Row, by SortBy) {
	less := func(a, b Row) bool { return a.Name < b.Name }

	switch by {
	case SortByUsage:
		less = func(a, b Row) bool {
			if a.FileCount != b.FileCount {
				return a.FileCount > b.FileCount
			}
			if a.SiteCount != b.SiteCount {
				return a.SiteCount > b.SiteCount
			}
			return a.Name < b.Name
		}
	case SortByImportance:
		less = func(a, b Row) bool {
			if a.ImportanceScore != b.ImportanceScore {
				return a.ImportanceScore > b.ImportanceScore
			}
			return a.Name < b.Name
		}
	case SortByClass:
		less = func(a, b Row) bool {
			if classRank[a.Class] != classRank[b.Class] {
				return classRank[a.Class] < classRank[b.Class]
			}
			return a.Name < b.Name
		}
	case SortByRemovable:
		less = func(a, b Row) bool {
			if a.Removable != b.Removable {
				return a.Removable
			}
			if a.ImportanceScore != b.ImportanceScore {
				return a.ImportanceScore < b.ImportanceScore
			}
			return a.Name < b.Name
		}
	}

	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
}

// FilterRows returns the rows matching f, preserving order.
func FilterRows(rows []Row, f Filter) []Row {
	keep := func(Row) bool { return true }

	switch f {
	case FilterRuntime:
		keep = func(r Row) bool { return r.Class == manifest.Runtime }
	case FilterDev:
		keep = func(r Row) bool { return r.Class == manifest.Development }
	case FilterBuild:
		keep = func(r Row) bool { return r.Class == manifest.BuildTime }
	case FilterUnused:
		keep = func(r Row) bool { return !r.Used }
	case FilterRemovable:
		keep = func(r Row) bool { return r.Removable }
	}

	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
