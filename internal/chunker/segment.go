package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Segmenter splits raw text into an ordered sequence of sentences.
type Segmenter interface {
	Segment(text string) []string
}

// RuleSegmenter splits on sentence-ending punctuation (.!? and CJK 。！？),
// skipping common abbreviations (Mr., Dr., e.g., etc.) and decimal numbers
// (3.14, $1.50) so they don't produce spurious boundaries.
type RuleSegmenter struct{}

func (RuleSegmenter) Segment(text string) []string {
	boundaries := findSentenceBoundaries(text)

	var sentences []string
	start := 0
	for _, b := range boundaries {
		s := strings.TrimSpace(text[start:b])
		if s != "" {
			sentences = append(sentences, s)
		}
		start = b
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// abbreviations that should NOT be treated as sentence boundaries.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true,
	"prof": true, "sr": true, "jr": true,
	"vs": true, "etc": true, "inc": true, "ltd": true,
	"e.g": true, "i.e": true, "viz": true, "al": true,
	"approx": true, "dept": true, "est": true,
	"fig": true, "no": true, "vol": true, "sec": true,
}

// isAbbreviation checks if the text ending at position dotPos (the '.')
// is a common abbreviation.
func isAbbreviation(text string, dotPos int) bool {
	start := dotPos
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if !unicode.IsLetter(r) && r != '.' {
			break
		}
		start -= size
	}
	word := strings.ToLower(text[start:dotPos])
	return abbreviations[word]
}

// isDecimalDot checks if the dot at dotPos is part of a number (e.g. 3.14).
func isDecimalDot(text string, dotPos int) bool {
	if dotPos == 0 || dotPos+1 >= len(text) {
		return false
	}
	prevByte := text[dotPos-1]
	nextByte := text[dotPos+1]
	return prevByte >= '0' && prevByte <= '9' && nextByte >= '0' && nextByte <= '9'
}

// findSentenceBoundaries returns byte positions where a new sentence starts.
func findSentenceBoundaries(text string) []int {
	var boundaries []int
	runes := []rune(text)
	n := len(runes)

	byteOffsets := make([]int, n+1)
	off := 0
	for i, r := range runes {
		byteOffsets[i] = off
		off += utf8.RuneLen(r)
	}
	byteOffsets[n] = off

	for i := 0; i < n; i++ {
		r := runes[i]

		// CJK sentence-ending punctuation is always a boundary.
		if r == '。' || r == '！' || r == '？' {
			boundaries = append(boundaries, byteOffsets[i+1])
			continue
		}

		if r != '.' && r != '!' && r != '?' {
			continue
		}

		dotBytePos := byteOffsets[i]
		if r == '.' && isDecimalDot(text, dotBytePos) {
			continue
		}
		if r == '.' && isAbbreviation(text, dotBytePos) {
			continue
		}

		// Need whitespace after the punctuation to call it a boundary.
		if i+1 < n && (runes[i+1] == ' ' || runes[i+1] == '\n') {
			boundaries = append(boundaries, byteOffsets[i+1])
		} else if i+1 >= n {
			boundaries = append(boundaries, byteOffsets[n])
		}
	}
	return boundaries
}
