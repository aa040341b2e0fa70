package export

import (
	"sort"

	"why/internal/analyzer"
	"why/internal/manifest"
)

// topPerClass is the number of leading dependencies listed per class.
const topPerClass = 3

// ClassSummary is a per-class overview of the exported rows.
type ClassSummary struct {
	Class        manifest.Class `json:"class" yaml:"class"`
	Dependencies int            `json:"dependencies" yaml:"dependencies"`
	Used         int            `json:"used" yaml:"used"`
	Removable    int            `json:"removable" yaml:"removable"`
	Top          []string       `json:"top" yaml:"top"`
}

// Organizer groups rows by declaration class.
type Organizer struct {
	rows []analyzer.Row
}

// NewOrganizer creates a new organizer.
func NewOrganizer(rows []analyzer.Row) *Organizer {
	return &Organizer{rows: rows}
}

// Organize returns one summary per class present in the rows, runtime
// first. Top lists the most important used dependencies of the class.
func (o *Organizer) Organize() []ClassSummary {
	byClass := make(map[manifest.Class]*ClassSummary)
	used := make(map[manifest.Class][]analyzer.Row)

	for _, r := range o.rows {
		s, ok := byClass[r.Class]
		if !ok {
			s = &ClassSummary{Class: r.Class, Top: []string{}}
			byClass[r.Class] = s
		}
		s.Dependencies++
		if r.Used {
			s.Used++
			used[r.Class] = append(used[r.Class], r)
		}
		if r.Removable {
			s.Removable++
		}
	}

	classes := make([]manifest.Class, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Slice(classes, func(i, j int) bool {
		ri, rj := classOrder(classes[i]), classOrder(classes[j])
		if ri != rj {
			return ri < rj
		}
		return classes[i] < classes[j]
	})

	out := make([]ClassSummary, 0, len(classes))
	for _, class := range classes {
		s := byClass[class]
		rows := used[class]
		analyzer.SortRows(rows, analyzer.SortByImportance)
		for i := 0; i < min(topPerClass, len(rows)); i++ {
			s.Top = append(s.Top, rows[i].Name)
		}
		out = append(out, *s)
	}
	return out
}

func classOrder(c manifest.Class) int {
	switch c {
	case manifest.Runtime:
		return 0
	case manifest.BuildTime:
		return 1
	case manifest.Development:
		return 2
	default:
		return 3
	}
}
