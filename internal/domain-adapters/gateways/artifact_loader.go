package gateways

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ochairo/specimen/internal/domain/entities"
)

const readChunkSize = 64 * 1024

// artifactLoader reads samples into memory in fixed-size chunks
type artifactLoader struct {
	maxBytes int64
}

// NewArtifactLoader creates a loader keeping at most maxBytes in memory (0 = no limit)
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewArtifactLoader(maxBytes int64) *artifactLoader {
	return &artifactLoader{maxBytes: maxBytes}
}

// LoadArtifact opens path once and reads it, checking ctx between chunks
func (l *artifactLoader) LoadArtifact(ctx context.Context, path string) (*entities.Artifact, error) {
	//nolint:gosec // G304: path is the sample submitted for analysis
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open file: %w", entities.ErrIO, err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to stat file: %w", entities.ErrIO, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", entities.ErrIO, path)
	}

	var buf bytes.Buffer
	if info.Mode().IsRegular() {
		grow := info.Size()
		if l.maxBytes > 0 && grow > l.maxBytes {
			grow = l.maxBytes
		}
		buf.Grow(int(grow))
	}

	if err := copyChunks(ctx, &buf, f, l.maxBytes); err != nil {
		return nil, fmt.Errorf("%w: failed to read file: %w", entities.ErrIO, err)
	}

	size := info.Size()
	if n := int64(buf.Len()); n > size {
		size = n
	}
	truncated := l.maxBytes > 0 && size > int64(buf.Len())
	if !info.Mode().IsRegular() && l.maxBytes > 0 && int64(buf.Len()) == l.maxBytes {
		truncated = true
	}

	return &entities.Artifact{
		Path:      path,
		Name:      filepath.Base(path),
		Size:      size,
		Data:      buf.Bytes(),
		Truncated: truncated,
	}, nil
}

// copyChunks copies at most limit bytes (all when limit <= 0) from r to w,
// returning ctx.Err() if the context ends first
func copyChunks(ctx context.Context, w io.Writer, r io.Reader, limit int64) error {
	chunk := make([]byte, readChunkSize)
	var copied int64
	for limit <= 0 || copied < limit {
		if err := ctx.Err(); err != nil {
			return err
		}
		want := int64(len(chunk))
		if limit > 0 && want > limit-copied {
			want = limit - copied
		}
		n, err := r.Read(chunk[:want])
		if n > 0 {
			if _, werr := w.Write(chunk[:n]); werr != nil {
				return werr
			}
			copied += int64(n)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}
