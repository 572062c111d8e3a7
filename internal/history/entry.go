package history

import "time"

// DayLayout is the calendar-day format used for day buckets and journal files.
const DayLayout = "2006-01-02"

// Entry is one captured clipboard text. Entries are never modified after
// they are created.
type Entry struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	CapturedAt time.Time `json:"captured_at"`
}

// Day returns the local calendar day the entry belongs to.
func (e Entry) Day() string {
	return e.CapturedAt.Local().Format(DayLayout)
}

// SearchResult pairs an entry with the byte span of the first
// case-insensitive occurrence of the query in its text.
type SearchResult struct {
	Entry          Entry `json:"entry"`
	HighlightStart int   `json:"highlight_start"`
	HighlightEnd   int   `json:"highlight_end"`
}

// Highlight returns the matched portion of the entry text.
func (r SearchResult) Highlight() string {
	return r.Entry.Text[r.HighlightStart:r.HighlightEnd]
}
