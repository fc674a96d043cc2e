package domain

import (
	"fmt"
	"maps"
	"strconv"
)

// Metadata keys set by the loader.
const (
	MetaSource     = "source"
	MetaPageNumber = "page_number"
)

// Metadata describes where a document or chunk came from.
type Metadata map[string]any

// Source returns the originating file name.
func (m Metadata) Source() string {
	s, _ := m[MetaSource].(string)
	return s
}

// PageNumber returns the zero-based PDF page, if any.
func (m Metadata) PageNumber() (int, bool) {
	switch v := m[MetaPageNumber].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Clone returns a shallow copy so chunks never share their parent's map.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

// Strings flattens metadata for stores that only keep string values.
func (m Metadata) Strings() map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = val
		case int:
			out[k] = strconv.Itoa(val)
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}

// MetadataFromStrings reverses Strings, restoring page_number as an int.
func MetadataFromStrings(in map[string]string) Metadata {
	out := make(Metadata, len(in))
	for k, v := range in {
		if k == MetaPageNumber {
			if n, err := strconv.Atoi(v); err == nil {
				out[k] = n
				continue
			}
		}
		out[k] = v
	}
	return out
}
