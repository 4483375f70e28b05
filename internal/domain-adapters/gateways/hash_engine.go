package gateways

import (
	"bytes"
	"context"
	"crypto/md5"  //nolint:gosec // G501: MD5 is reported as a sample identifier, not for security
	"crypto/sha1" //nolint:gosec // G505: SHA-1 is reported as a sample identifier, not for security
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/glaslos/ssdeep"

	"github.com/ochairo/specimen/internal/domain/entities"
	"github.com/ochairo/specimen/internal/domain/interfaces"
)

// MinFuzzyHashSize is the smallest input ssdeep produces a signature for
const MinFuzzyHashSize = 4096

// hashEngine computes every fingerprint in a single chunked pass
type hashEngine struct {
	logger interfaces.Logger
}

// NewHashEngine creates a new hash engine
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewHashEngine(logger interfaces.Logger) *hashEngine {
	return &hashEngine{logger: interfaces.OrNoOp(logger)}
}

// Fingerprint hashes the artifact. Truncated artifacts are re-read from disk so
// the exact hashes always cover the whole file.
func (h *hashEngine) Fingerprint(ctx context.Context, artifact *entities.Artifact) (*entities.FingerprintSet, error) {
	var src io.Reader = bytes.NewReader(artifact.Data)
	if artifact.Truncated {
		//nolint:gosec // G304: path is the sample submitted for analysis
		f, err := os.Open(artifact.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to open file: %w", entities.ErrIO, err)
		}
		//nolint:errcheck // Defer close on read-only file
		defer f.Close()
		src = f
	}

	//nolint:gosec // G401: see import comment
	md5h, sha1h, sha256h, crc := md5.New(), sha1.New(), sha256.New(), crc32.NewIEEE()
	if err := copyChunks(ctx, io.MultiWriter(md5h, sha1h, sha256h, crc), src, 0); err != nil {
		return nil, fmt.Errorf("%w: failed to hash file: %w", entities.ErrIO, err)
	}

	fp := &entities.FingerprintSet{
		MD5:    hex.EncodeToString(md5h.Sum(nil)),
		SHA1:   hex.EncodeToString(sha1h.Sum(nil)),
		SHA256: hex.EncodeToString(sha256h.Sum(nil)),
		CRC32:  FormatCRC32(crc.Sum32()),
	}

	if artifact.Truncated {
		h.logger.Warn("fuzzy hash skipped for truncated artifact", interfaces.F("path", artifact.Path))
		return fp, nil
	}
	fp.SSDeep = h.FuzzyHash(artifact.Data)
	return fp, nil
}

// FormatCRC32 renders a checksum as 8 lowercase hex digits
func FormatCRC32(sum uint32) string {
	return fmt.Sprintf("%08x", sum)
}

// FuzzyHash returns the ssdeep signature of data. Inputs below the minimum size
// have no signature; that is a valid result, not an error.
func (h *hashEngine) FuzzyHash(data []byte) entities.Optional[string] {
	if len(data) < MinFuzzyHashSize {
		return entities.None[string]()
	}
	sig, err := ssdeep.FuzzyBytes(data)
	if err != nil {
		if !errors.Is(err, ssdeep.ErrFileTooSmall) {
			h.logger.Warn("fuzzy hash produced no signature", interfaces.F("error", err.Error()))
		}
		return entities.None[string]()
	}
	if sig == "" {
		return entities.None[string]()
	}
	return entities.Some(sig)
}

// CompareFuzzy scores the similarity of two ssdeep signatures (0-100)
func (h *hashEngine) CompareFuzzy(a, b string) (int, error) {
	score, err := ssdeep.Distance(a, b)
	if err != nil {
		return 0, fmt.Errorf("failed to compare fuzzy hashes: %w", err)
	}
	return score, nil
}
