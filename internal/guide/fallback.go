package guide

import "strings"

// FirstNonEmpty returns the first value that is not blank after trimming,
// trimmed. It returns "" when every value is blank.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}

// FirstNonNil returns the first non-nil pointer in values.
func FirstNonNil[T any](values ...*T) *T {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// SplitList splits a delimited string into trimmed, non-empty entries. It
// always returns a non-nil slice.
func SplitList(s string, sep string) []string {
	out := []string{}
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
