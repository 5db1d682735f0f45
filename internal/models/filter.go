package models

import (
	"fmt"
	"sort"
	"strconv"
)

// Filters restrict a search to documents whose metadata matches every key. A list value
// matches when the metadata holds any of its elements.
type Filters map[string]interface{}

// Validate accepts scalar values and non-empty lists of scalars.
func (f Filters) Validate() error {
	for key, v := range f {
		if key == "" {
			return fmt.Errorf("%w: filter key cannot be empty", ErrInvalidQuery)
		}
		values, ok := filterValues(v)
		if !ok || len(values) == 0 {
			return fmt.Errorf("%w: filter %q must be a scalar or a non-empty list of scalars", ErrInvalidQuery, key)
		}
	}
	return nil
}

// Keys returns the filter keys in sorted order.
func (f Filters) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns the accepted values for key in their string form.
func (f Filters) Values(key string) []string {
	values, _ := filterValues(f[key])
	return values
}

// Match reports whether metadata satisfies every filter.
func (f Filters) Match(metadata map[string]interface{}) bool {
	for key, want := range f {
		have, ok := metadata[key]
		if !ok {
			return false
		}
		wantValues, _ := filterValues(want)
		haveValues, _ := filterValues(have)
		if !intersects(wantValues, haveValues) {
			return false
		}
	}
	return true
}

// FilterTerms flattens metadata into "key=value" terms for keyword indexing. Nested
// objects are skipped.
func FilterTerms(metadata map[string]interface{}) []string {
	var terms []string
	for key, v := range metadata {
		values, ok := filterValues(v)
		if !ok {
			continue
		}
		for _, value := range values {
			terms = append(terms, FilterTerm(key, value))
		}
	}
	sort.Strings(terms)
	return terms
}

// FilterTerm is the keyword form of one metadata pair.
func FilterTerm(key, value string) string {
	return key + "=" + value
}

func filterValues(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := scalarString(e)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case []string:
		return append([]string(nil), t...), true
	default:
		s, ok := scalarString(v)
		if !ok {
			return nil, false
		}
		return []string{s}, true
	}
}

func scalarString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	default:
		return "", false
	}
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
