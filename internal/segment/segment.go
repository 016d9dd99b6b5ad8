package segment

import "strings"

// DefaultWordsPerSegment is the chunk size used when the caller does not
// configure one.
const DefaultWordsPerSegment = 100

// Split groups consecutive whitespace-delimited words into chunks of exactly
// wordsPerSegment words; the final chunk may be shorter. Word order is
// preserved and no word is split, duplicated, or dropped, so the segment
// index is a stable address for bookmarks and audio caching. Empty or
// all-whitespace text yields nil.
func Split(text string, wordsPerSegment int) []string {
	if wordsPerSegment <= 0 {
		wordsPerSegment = DefaultWordsPerSegment
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	segments := make([]string, 0, (len(words)+wordsPerSegment-1)/wordsPerSegment)
	for start := 0; start < len(words); start += wordsPerSegment {
		end := start + wordsPerSegment
		if end > len(words) {
			end = len(words)
		}
		segments = append(segments, strings.Join(words[start:end], " "))
	}
	return segments
}

// WordCount reports the total number of words across segments.
func WordCount(segments []string) int {
	total := 0
	for _, s := range segments {
		total += len(strings.Fields(s))
	}
	return total
}
