package history

import (
	"strings"
	"unicode"
)

// Search returns, in the given order, every entry containing query ignoring
// case, with the span of the first occurrence.
func Search(entries []Entry, query string) []SearchResult {
	lq := strings.ToLower(query)
	var out []SearchResult
	for _, e := range entries {
		start, end, ok := matchSpan(e.Text, lq)
		if !ok {
			continue
		}
		out = append(out, SearchResult{Entry: e, HighlightStart: start, HighlightEnd: end})
	}
	return out
}

// matchSpan locates lowerQuery in text using simple per-rune lowercasing and
// returns the span in text's own byte offsets. An empty query matches at 0
// with zero length.
func matchSpan(text, lowerQuery string) (start, end int, ok bool) {
	if lowerQuery == "" {
		return 0, 0, true
	}
	lowered, offsets := lowerWithOffsets(text)
	i := strings.Index(lowered, lowerQuery)
	if i < 0 {
		return 0, 0, false
	}
	start = offsets[i]
	end = len(text)
	if j := i + len(lowerQuery); j < len(offsets) {
		end = offsets[j]
	}
	return start, end, true
}

// lowerWithOffsets lowercases s rune by rune. offsets[k] is the byte offset in
// s of the rune that produced byte k of the lowered string; lowercasing may
// change a rune's encoded length, so the two strings cannot share indices.
func lowerWithOffsets(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	offsets := make([]int, 0, len(s))
	for i, r := range s {
		n := b.Len()
		b.WriteRune(unicode.ToLower(r))
		for k := n; k < b.Len(); k++ {
			offsets = append(offsets, i)
		}
	}
	return b.String(), offsets
}
