package busnum

import "strings"

// koreanDigits maps spoken Korean (and Konglish) number words to digits.
// Multi-syllable words come first so they are replaced before their
// single-syllable suffixes.
var koreanDigits = []struct {
	word  string
	digit string
}{
	{"하나", "1"}, {"다섯", "5"}, {"여섯", "6"}, {"일곱", "7"}, {"여덟", "8"}, {"아홉", "9"},
	{"파이브", "5"}, {"쓰리", "3"}, {"세븐", "7"}, {"에잇", "8"}, {"나인", "9"}, {"식스", "6"},
	{"영", "0"}, {"공", "0"}, {"빵", "0"},
	{"일", "1"}, {"원", "1"},
	{"이", "2"}, {"둘", "2"}, {"투", "2"},
	{"삼", "3"}, {"셋", "3"},
	{"사", "4"}, {"넷", "4"}, {"포", "4"},
	{"오", "5"},
	{"육", "6"},
	{"칠", "7"},
	{"팔", "8"},
	{"구", "9"},
}

// DigitsFromTranscript extracts a digit string from a voice transcript.
// Literal digit runs win; otherwise Korean number words are converted and
// the resulting runs are joined. Returns "" when nothing numeric remains.
func DigitsFromTranscript(text string) string {
	if direct := reDigits.FindAllString(text, -1); len(direct) > 0 {
		return strings.Join(direct, "")
	}

	converted := text
	for _, kd := range koreanDigits {
		converted = strings.ReplaceAll(converted, kd.word, kd.digit)
	}

	if runs := reDigits.FindAllString(converted, -1); len(runs) > 0 {
		return strings.Join(runs, "")
	}
	return ""
}
