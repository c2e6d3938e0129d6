package utils

import "unicode"

// Span is a piece of a text with its rune offsets; End is exclusive.
type Span struct {
	Text  string
	Start int
	End   int
}

// SplitText splits text into chunks of at most chunkSize runes, each
// overlapping the previous one by overlap runes. A chunk is shortened to end
// on whitespace when one lies in its last quarter.
func SplitText(text string, chunkSize int, overlap int) []Span {
	runes := []rune(text)
	total := len(runes)
	if total == 0 || chunkSize <= 0 {
		return nil
	}
	if total <= chunkSize {
		return []Span{{Text: text, Start: 0, End: total}}
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	var spans []Span
	for start := 0; start < total; {
		end := start + chunkSize
		if end >= total {
			end = total
		} else if cut := lastSpace(runes, end-chunkSize/4, end); cut > start+overlap {
			end = cut
		}

		spans = append(spans, Span{Text: string(runes[start:end]), Start: start, End: end})
		if end == total {
			break
		}
		start = end - overlap
	}
	return spans
}

// lastSpace returns the index just after the last whitespace rune in
// runes[from:to], or -1.
func lastSpace(runes []rune, from, to int) int {
	if from < 0 {
		from = 0
	}
	for i := to - 1; i >= from; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return -1
}
