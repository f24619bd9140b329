package expand

import (
	"strconv"
	"strings"
)

// Braces expands a single argument containing one or more brace groups
// ({a,b,c} or {1..5}/{5..1}) into the cartesian product of its literal and
// expanded segments, per spec.md §4.3. An argument with no recognizable
// brace group is returned unchanged as a single-element slice.
func Braces(arg string) []string {
	start := strings.IndexByte(arg, '{')
	if start < 0 {
		return []string{arg}
	}
	end := matchingBrace(arg, start)
	if end < 0 {
		return []string{arg}
	}

	prefix := arg[:start]
	body := arg[start+1 : end]
	suffix := arg[end+1:]

	items := braceItems(body)
	if items == nil {
		return []string{arg}
	}

	var out []string
	for _, item := range items {
		for _, suf := range Braces(suffix) {
			out = append(out, prefix+item+suf)
		}
	}
	return out
}

// matchingBrace finds the index of the '}' matching the '{' at start,
// honoring nested braces.
func matchingBrace(s string, start int) int {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// braceItems expands the content between { and }: either a numeric range
// "N..M" (ascending or descending) or a comma-separated list. Returns nil
// if body is neither (e.g. a single item with no comma, which bash also
// leaves unexpanded).
func braceItems(body string) []string {
	if lo, hi, ok := parseRange(body); ok {
		return intRange(lo, hi)
	}
	if !strings.Contains(body, ",") {
		return nil
	}
	return splitTopLevelComma(body)
}

func parseRange(body string) (int, int, bool) {
	parts := strings.SplitN(body, "..", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lo, err1 := strconv.Atoi(parts[0])
	hi, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

func intRange(lo, hi int) []string {
	var out []string
	if lo <= hi {
		for i := lo; i <= hi; i++ {
			out = append(out, strconv.Itoa(i))
		}
	} else {
		for i := lo; i >= hi; i-- {
			out = append(out, strconv.Itoa(i))
		}
	}
	return out
}

// splitTopLevelComma splits body on commas that are not inside a nested
// brace group.
func splitTopLevelComma(body string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, body[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, body[start:])
	return out
}
