package services

import (
	"bytes"
	"fmt"

	"github.com/ochairo/specimen/internal/domain/entities"
)

// MatchOptions controls where signatures are tested
type MatchOptions struct {
	// EntryPointOnly restricts matching to ep_only signatures anchored at the
	// entry point. When false, the remaining signatures are also searched for
	// across the whole buffer.
	EntryPointOnly bool
}

// MatchSignatures returns every database entry found in data, in database order.
// An empty result is a valid outcome.
func MatchSignatures(db *entities.SignatureDatabase, pe *entities.PEStructure, data []byte, opts MatchOptions) ([]entities.SignatureMatch, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database not loaded", entities.ErrSignatureDatabase)
	}
	epOffset, ok := pe.EntryPointOffset.Get()
	if !ok {
		return nil, fmt.Errorf("%w: entry point does not map into the file", entities.ErrMalformedContainer)
	}

	matches := []entities.SignatureMatch{}
	for _, sig := range db.Signatures {
		if sig.Len() == 0 {
			continue
		}
		if sig.EPOnly {
			if matchAt(sig, data, int64(epOffset)) {
				matches = append(matches, entities.SignatureMatch{Name: sig.Name, Offset: int64(epOffset)})
			}
			continue
		}
		if opts.EntryPointOnly {
			continue
		}
		if off := search(sig, data); off >= 0 {
			matches = append(matches, entities.SignatureMatch{Name: sig.Name, Offset: off})
		}
	}
	return matches, nil
}

func matchAt(sig entities.PackerSignature, data []byte, off int64) bool {
	if off < 0 || off+int64(sig.Len()) > int64(len(data)) {
		return false
	}
	for i, b := range sig.Pattern {
		if sig.Wildcard[i] {
			continue
		}
		if data[off+int64(i)] != b {
			return false
		}
	}
	return true
}

// search returns the first offset sig matches at, or -1
func search(sig entities.PackerSignature, data []byte) int64 {
	anchor := -1
	for i := range sig.Pattern {
		if !sig.Wildcard[i] {
			anchor = i
			break
		}
	}
	limit := len(data) - sig.Len()
	if limit < 0 {
		return -1
	}
	if anchor < 0 {
		return 0
	}

	for pos := 0; pos <= limit; {
		idx := bytes.IndexByte(data[pos+anchor:limit+anchor+1], sig.Pattern[anchor])
		if idx < 0 {
			return -1
		}
		pos += idx
		if matchAt(sig, data, int64(pos)) {
			return int64(pos)
		}
		pos++
	}
	return -1
}
