package sigdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ochairo/specimen/internal/domain/entities"
	"github.com/ochairo/specimen/internal/domain/interfaces"
	"github.com/ochairo/specimen/internal/external-adapters/gpg"
)

// Repository implements repositories.SignatureRepository from a local file.
// The file is read and, when configured, signature-checked once.
type Repository struct {
	path        string
	detachedSig string
	keyring     string
	logger      interfaces.Logger

	mu sync.Mutex
	db *entities.SignatureDatabase
}

// NewRepository creates a repository for the database named in config
func NewRepository(config entities.TriageConfig, logger interfaces.Logger) *Repository {
	return &Repository{
		path:        config.SignaturesPath,
		detachedSig: config.SignaturesDetachedSig,
		keyring:     config.SignaturesKeyring,
		logger:      interfaces.OrNoOp(logger),
	}
}

// Load returns the cached database, reading it on first use
func (r *Repository) Load(ctx context.Context) (*entities.SignatureDatabase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return r.db, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", entities.ErrSignatureDatabase, err)
	}
	if r.path == "" {
		return nil, fmt.Errorf("%w: no signature database configured", entities.ErrSignatureDatabase)
	}

	if r.detachedSig != "" {
		if err := r.verify(); err != nil {
			return nil, fmt.Errorf("%w: %w", entities.ErrSignatureDatabase, err)
		}
		r.logger.Debug("signature database authenticated", interfaces.F("path", r.path))
	}

	db, err := r.parse()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entities.ErrSignatureDatabase, err)
	}

	r.logger.Info("signature database loaded",
		interfaces.F("path", r.path),
		interfaces.F("signatures", len(db.Signatures)))
	r.db = db
	return db, nil
}

func (r *Repository) verify() error {
	if r.keyring == "" {
		return fmt.Errorf("detached signature configured without a keyring")
	}
	v := gpg.NewVerifier()
	if err := v.ImportKeyFromFile(r.keyring); err != nil {
		return err
	}
	return v.VerifySignatureFromFile(r.path, r.detachedSig)
}

func (r *Repository) parse() (*entities.SignatureDatabase, error) {
	switch strings.ToLower(filepath.Ext(r.path)) {
	case ".yml", ".yaml":
		//nolint:gosec // G304: path comes from configuration
		data, err := os.ReadFile(r.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", r.path, err)
		}
		return NewYAMLParser().Parse(data, r.path)
	default:
		//nolint:gosec // G304: path comes from configuration
		f, err := os.Open(r.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", r.path, err)
		}
		//nolint:errcheck // Defer close on read-only file
		defer f.Close()
		return NewPEiDParser().Parse(f, r.path)
	}
}
