// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// RecipeRepository defines the interface for accessing component recipes
type RecipeRepository interface {
	// GetRecipe retrieves a component recipe by name
	GetRecipe(ctx context.Context, name string) (*entities.ComponentRecipe, error)

	// ListRecipes returns all available component recipes
	ListRecipes(ctx context.Context) ([]*entities.ComponentRecipe, error)
}

// ChecksumLedger remembers every checksum published for a version so that a
// changed checksum is refused instead of silently accepted
type ChecksumLedger interface {
	Pin(ctx context.Context, src *entities.VersionSourceDescriptor) error
}
