package fetcher

import (
	"strconv"
	"strings"
)

// Metadata holds the histogram summaries of a metadata request. A nil field
// means the response carried no data for it.
type Metadata struct {
	Category *CategorySummary
	Aspects  AspectSummary
}

// CategorySummary names the category with the most matching items and its
// largest subcategory.
type CategorySummary struct {
	ID    string
	Name  string
	Count int

	SubcategoryID    string
	SubcategoryName  string
	SubcategoryCount int
}

// AspectSummary maps aspect name to value name to item count.
type AspectSummary map[string]map[string]int

type histogramEntry struct {
	id    string
	name  string
	count int
	raw   map[string]any
}

func parseCategoryHistogram(v any) *CategorySummary {
	container, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	top, ok := largest(asList(container["categoryHistogram"]))
	if !ok {
		return nil
	}

	summary := &CategorySummary{ID: top.id, Name: top.name, Count: top.count}
	if child, ok := largest(asList(top.raw["childCategoryHistogram"])); ok {
		summary.SubcategoryID = child.id
		summary.SubcategoryName = child.name
		summary.SubcategoryCount = child.count
	}
	return summary
}

// largest returns the category entry with the highest count; the first one
// wins a tie.
func largest(entries []any) (histogramEntry, bool) {
	var (
		best  histogramEntry
		found bool
	)
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		entry := histogramEntry{
			id:    toString(m["categoryId"]),
			name:  toString(m["categoryName"]),
			count: toInt(m["count"]),
			raw:   m,
		}
		if !found || entry.count > best.count {
			best = entry
			found = true
		}
	}
	return best, found
}

func parseAspectHistogram(v any) AspectSummary {
	container, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	aspects := asList(container["aspect"])
	if len(aspects) == 0 {
		return nil
	}

	summary := make(AspectSummary, len(aspects))
	for _, a := range aspects {
		m, ok := a.(map[string]any)
		if !ok {
			continue
		}
		name := toString(m["name"])
		if name == "" {
			continue
		}
		values := make(map[string]int)
		for _, vh := range asList(m["valueHistogram"]) {
			vm, ok := vh.(map[string]any)
			if !ok {
				continue
			}
			values[toString(vm["valueName"])] = toInt(vm["count"])
		}
		summary[name] = values
	}
	return summary
}

// asList accepts both shapes a normalised field can take: a collapsed
// single element or a list.
func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}

// toInt reads counts that the service sends as strings.
func toInt(v any) int {
	switch t := v.(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	case float64:
		return int(t)
	case int:
		return t
	default:
		return 0
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
