// Package flatten turns nested item records into single-level records.
//
// Scalars keep their own key where possible. A nested scalar whose key is
// already taken, or whose key is known to repeat across nesting levels
// (currencyId, value), is stored under its parent key joined with Separator.
// If that name is taken as well, further ancestors are prepended and, as a
// last resort, a numeric suffix is appended, so no leaf value is dropped.
//
// Lists of scalars are kept as leaf values. A list holding objects is spread
// over index-qualified keys instead: the fields of element i of galleryURL
// land under galleryURL_i (galleryURL_0_value, galleryURL_1_value), so no
// object survives in the output.
//
// Scalars of a level are placed before its nested objects are descended, and
// nested objects are visited in key order. Top-level fields therefore always
// keep their names and the output does not depend on map iteration order.
package flatten

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/Sternrassler/ebay-data-client/pkg/apierr"
)

// Separator joins parent and child keys.
const Separator = "_"

// collisionProne lists keys that appear at several nesting levels of an item
// (every price object carries both).
var collisionProne = map[string]bool{
	"currencyId": true,
	"value":      true,
}

// Record is a flat item: no map[string]any is reachable from its values.
type Record map[string]any

// Keys returns the record's keys in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flatten flattens a single decoded record. v must be a map[string]any;
// anything else is reported as apierr.ErrInput.
func Flatten(v any) (Record, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, apierr.New(apierr.TagInput, fmt.Sprintf("record is %T, want object", v), nil)
	}

	out := make(Record, len(m))
	flattenInto(out, m, nil, noAnchor)
	return out, nil
}

// FlattenAll flattens every item of a decoded item list. It stops at the
// first malformed item.
func FlattenAll(items []any) ([]Record, error) {
	out := make([]Record, 0, len(items))
	for i, item := range items {
		rec, err := Flatten(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// noAnchor marks a path that does not run through a list element.
const noAnchor = -1

// flattenInto places the fields of m, found at path, into acc. When anchor
// is not noAnchor, path[anchor:] names a list element and must stay part of
// every key placed below it.
func flattenInto(acc Record, m map[string]any, path []string, anchor int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var nested []string
	for _, k := range keys {
		switch v := m[k].(type) {
		case map[string]any:
			nested = append(nested, k)
			continue
		case []any:
			if holdsObject(v) {
				nested = append(nested, k)
				continue
			}
		}
		acc[placement(acc, path, k, anchor)] = m[k]
	}

	for _, k := range nested {
		switch v := m[k].(type) {
		case map[string]any:
			flattenInto(acc, v, extend(path, k), anchor)
		case []any:
			flattenList(acc, v, path, k, anchor)
		}
	}
}

// flattenList spreads a list holding objects over index-qualified keys:
// element i of key is visited as key_i.
func flattenList(acc Record, list []any, path []string, key string, anchor int) {
	for i, elem := range list {
		indexed := key + Separator + strconv.Itoa(i)
		switch v := elem.(type) {
		case map[string]any:
			elemAnchor := anchor
			if elemAnchor == noAnchor {
				elemAnchor = len(path)
			}
			flattenInto(acc, v, extend(path, indexed), elemAnchor)
		case []any:
			if holdsObject(v) {
				flattenList(acc, v, path, indexed, anchor)
				continue
			}
			acc[placement(acc, path, indexed, anchor)] = v
		default:
			acc[placement(acc, path, indexed, anchor)] = v
		}
	}
}

// holdsObject reports whether an object is reachable from list.
func holdsObject(list []any) bool {
	for _, elem := range list {
		switch v := elem.(type) {
		case map[string]any:
			return true
		case []any:
			if holdsObject(v) {
				return true
			}
		}
	}
	return false
}

func extend(path []string, key string) []string {
	child := make([]string, len(path)+1)
	copy(child, path)
	child[len(path)] = key
	return child
}

// placement picks the output key for a scalar found at path/key.
func placement(acc Record, path []string, key string, anchor int) string {
	if anchor == noAnchor {
		anchor = len(path)
	}

	candidate := key
	for i := len(path) - 1; i >= anchor; i-- {
		candidate = path[i] + Separator + candidate
	}
	_, taken := acc[candidate]
	if !taken && (anchor < len(path) || len(path) == 0 || !collisionProne[key]) {
		return candidate
	}

	for i := anchor - 1; i >= 0; i-- {
		candidate = path[i] + Separator + candidate
		if _, taken := acc[candidate]; !taken {
			return candidate
		}
	}

	for n := 2; ; n++ {
		suffixed := candidate + Separator + strconv.Itoa(n)
		if _, taken := acc[suffixed]; !taken {
			return suffixed
		}
	}
}
