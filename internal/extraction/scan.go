package extraction

import "encoding/json"

// String states of the brace scanner.
const (
	outside = iota
	inString
	escaped
)

// FindJSONObject returns the first balanced {...} substring of text that is
// valid JSON. Braces inside JSON string literals do not count towards the
// balance.
func FindJSONObject(text string) (string, bool) {
	ends := matchBraces(text)
	for start, end := range ends {
		if end < 0 {
			continue
		}
		if candidate := text[start : end+1]; json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// matchBraces finds, for every '{', the brace closing it when scanning starts
// at that '{' outside any string. ends[i] is -1 when text[i] is not an opening
// brace or is never closed.
//
// Scans started at different braces only differ in their string state, so the
// text is read once while tracking one stack of open braces per string state.
// Stacks that reach the same state see the same future and are merged, with
// braces at the same distance from the top closing together.
func matchBraces(text string) []int {
	ends := make([]int, len(text))
	for i := range ends {
		ends[i] = -1
	}

	var stacks [3][][]int
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '{':
			stacks[outside] = append(stacks[outside], []int{i})
		case '}':
			if top := len(stacks[outside]) - 1; top >= 0 {
				for _, start := range stacks[outside][top] {
					ends[start] = i
				}
				stacks[outside] = stacks[outside][:top]
			}
		}

		var next [3][][]int
		for state, levels := range stacks {
			if len(levels) == 0 {
				continue
			}
			ns := advance(state, c)
			next[ns] = mergeLevels(next[ns], levels)
		}
		stacks = next
	}
	return ends
}

func advance(state int, c byte) int {
	switch state {
	case outside:
		if c == '"' {
			return inString
		}
		return outside
	case inString:
		switch c {
		case '\\':
			return escaped
		case '"':
			return outside
		}
		return inString
	default:
		return inString
	}
}

// mergeLevels combines two stacks aligned at their tops.
func mergeLevels(a, b [][]int) [][]int {
	if len(a) < len(b) {
		a, b = b, a
	}
	off := len(a) - len(b)
	for i, level := range b {
		a[off+i] = append(a[off+i], level...)
	}
	return a
}
