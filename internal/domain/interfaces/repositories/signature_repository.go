// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"

	"github.com/ochairo/specimen/internal/domain/entities"
)

// SignatureRepository defines the interface for accessing the packer signature database
type SignatureRepository interface {
	// Load returns the database, reading it on first use
	Load(ctx context.Context) (*entities.SignatureDatabase, error)
}
