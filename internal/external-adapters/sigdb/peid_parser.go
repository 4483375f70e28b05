package sigdb

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ochairo/specimen/internal/domain/entities"
)

// PEiDParser parses the PEiD userdb.txt format:
//
//	[UPX 2.90 -> Markus Oberhumer]
//	signature = 60 BE ?? ?? ?? ?? 8D BE
//	ep_only = true
type PEiDParser struct{}

// NewPEiDParser creates a new PEiD parser
func NewPEiDParser() *PEiDParser {
	return &PEiDParser{}
}

// Parse reads every entry in file order. Entries without a signature line are skipped.
func (p *PEiDParser) Parse(r io.Reader, source string) (*entities.SignatureDatabase, error) {
	db := &entities.SignatureDatabase{Source: source}

	var (
		name    string
		pattern string
		epOnly  bool
		inEntry bool
		lineNo  int
	)

	flush := func() error {
		if !inEntry || pattern == "" {
			return nil
		}
		bytes, wildcard, err := ParsePattern(pattern)
		if err != nil {
			return fmt.Errorf("signature %q: %w", name, err)
		}
		db.Signatures = append(db.Signatures, entities.PackerSignature{
			Name:     name,
			Pattern:  bytes,
			Wildcard: wildcard,
			EPOnly:   epOnly,
		})
		return nil
	}

	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			if err := flush(); err != nil {
				return nil, err
			}
			name = strings.TrimSpace(line[1 : len(line)-1])
			pattern, epOnly, inEntry = "", false, true
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok || !inEntry {
			return nil, fmt.Errorf("line %d: unexpected %q", lineNo, line)
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "signature":
			pattern = strings.TrimSpace(value)
		case "ep_only":
			epOnly = strings.EqualFold(strings.TrimSpace(value), "true")
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("failed to read signatures: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return db, nil
}
