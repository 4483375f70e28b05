package services

import "github.com/ochairo/specimen/internal/domain/entities"

// StringExtractor finds printable ASCII and UTF-16LE runs in a byte stream.
// It is pure logic and safe for concurrent use.
type StringExtractor struct {
	minLen     int
	maxStrings int
}

// NewStringExtractor creates an extractor; minLen < 1 falls back to the default,
// maxStrings <= 0 means no cap
func NewStringExtractor(minLen, maxStrings int) *StringExtractor {
	if minLen < 1 {
		minLen = entities.DefaultMinStringLength
	}
	return &StringExtractor{minLen: minLen, maxStrings: maxStrings}
}

// ExtractStrings is the uncapped form of StringExtractor.Extract
func ExtractStrings(data []byte, minLen int) *entities.StringTable {
	return NewStringExtractor(minLen, 0).Extract(data)
}

// Extract scans data once per encoding. Both sequences keep occurrence order.
func (e *StringExtractor) Extract(data []byte) *entities.StringTable {
	ascii, asciiCut := e.scanASCII(data)
	unicode, unicodeCut := e.scanUTF16LE(data)
	return &entities.StringTable{
		ASCII:     ascii,
		Unicode:   unicode,
		Truncated: asciiCut || unicodeCut,
	}
}

func isPrintable(b byte) bool {
	return b >= 0x20 && b <= 0x7e
}

func (e *StringExtractor) full(out []string) bool {
	return e.maxStrings > 0 && len(out) >= e.maxStrings
}

func (e *StringExtractor) scanASCII(data []byte) ([]string, bool) {
	out := []string{}
	start := -1
	for i := 0; i <= len(data); i++ {
		if i < len(data) && isPrintable(data[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start >= e.minLen {
			if e.full(out) {
				return out, true
			}
			out = append(out, string(data[start:i]))
		}
		start = -1
	}
	return out, false
}

// scanUTF16LE looks for runs of (printable, 0x00) pairs. A failed start is
// retried one byte later so runs at odd offsets are found too.
func (e *StringExtractor) scanUTF16LE(data []byte) ([]string, bool) {
	out := []string{}
	n := len(data)
	for i := 0; i+1 < n; {
		j := i
		for j+1 < n && isPrintable(data[j]) && data[j+1] == 0 {
			j += 2
		}
		runLen := (j - i) / 2
		if runLen < e.minLen {
			i++
			continue
		}
		if e.full(out) {
			return out, true
		}
		buf := make([]byte, runLen)
		for k := range buf {
			buf[k] = data[i+2*k]
		}
		out = append(out, string(buf))
		i = j + 1
	}
	return out, false
}
