// Package sigdb loads packer signature databases in PEiD text or YAML form.
package sigdb

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ParsePattern converts "60 BE ?? ?? 8D" into pattern bytes and a wildcard mask.
// Any token containing '?' is a full-byte wildcard.
func ParsePattern(s string) ([]byte, []bool, error) {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return nil, nil, fmt.Errorf("empty signature pattern")
	}

	pattern := make([]byte, len(tokens))
	wildcard := make([]bool, len(tokens))
	for i, tok := range tokens {
		if strings.Contains(tok, "?") {
			wildcard[i] = true
			continue
		}
		if len(tok) != 2 {
			return nil, nil, fmt.Errorf("invalid byte %q at position %d", tok, i)
		}
		b, err := hex.DecodeString(tok)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid byte %q at position %d: %w", tok, i, err)
		}
		pattern[i] = b[0]
	}
	return pattern, wildcard, nil
}
