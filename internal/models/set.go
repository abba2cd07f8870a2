package models

import (
	"encoding/json"
	"slices"
	"strings"
)

// StringSet is a sorted, de-duplicated collection of identifiers used for
// assignees, labels and module members. The zero value is an empty set.
type StringSet []string

// NewStringSet builds a set from items, trimming blanks and duplicates.
func NewStringSet(items ...string) StringSet {
	out := make(StringSet, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		out = append(out, it)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Contains reports whether v is a member of s.
func (s StringSet) Contains(v string) bool {
	return slices.Contains(s, v)
}

// Equal reports whether both sets hold the same members.
func (s StringSet) Equal(o StringSet) bool {
	return slices.Equal(NewStringSet(s...), NewStringSet(o...))
}

// MarshalJSON always encodes an array, never null.
func (s StringSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// UnmarshalJSON decodes an array (or null) and normalizes it.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewStringSet(raw...)
	return nil
}
