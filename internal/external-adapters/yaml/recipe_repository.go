package yaml

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/interfaces"
)

// ErrRecipeNotFound is returned when no recipe file exists for a name
var ErrRecipeNotFound = errors.New("recipe not found")

// RecipeRepository implements repositories.RecipeRepository over YAML files
// in a filesystem (the embedded recipes or a directory on disk)
type RecipeRepository struct {
	recipes fs.FS
	parser  *RecipeParser
	logger  interfaces.Logger
}

// NewRecipeRepository creates a repository reading *.yml files from recipes
func NewRecipeRepository(recipes fs.FS, logger interfaces.Logger) *RecipeRepository {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &RecipeRepository{
		recipes: recipes,
		parser:  NewRecipeParser(),
		logger:  logger,
	}
}

// NewDirRecipeRepository creates a repository over a directory on disk
func NewDirRecipeRepository(recipesDir string, logger interfaces.Logger) *RecipeRepository {
	return NewRecipeRepository(os.DirFS(recipesDir), logger)
}

// GetRecipe retrieves a component recipe by name
func (r *RecipeRepository) GetRecipe(_ context.Context, name string) (*entities.ComponentRecipe, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid recipe name %q", name)
	}

	data, err := fs.ReadFile(r.recipes, name+".yml")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRecipeNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe %s: %w", name, err)
	}

	recipe, err := r.parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recipe %s: %w", name, err)
	}
	if recipe.Name != name {
		return nil, fmt.Errorf("recipe file %s.yml declares name %q", name, recipe.Name)
	}
	return recipe, nil
}

// ListRecipes returns all available component recipes
func (r *RecipeRepository) ListRecipes(_ context.Context) ([]*entities.ComponentRecipe, error) {
	entries, err := fs.ReadDir(r.recipes, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read recipes directory: %w", err)
	}

	recipes := make([]*entities.ComponentRecipe, 0)
	for _, entry := range entries {
		// Skip non-YAML files
		if entry.IsDir() || path.Ext(entry.Name()) != ".yml" {
			continue
		}

		data, err := fs.ReadFile(r.recipes, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read recipe %s: %w", entry.Name(), err)
		}

		def, err := r.parser.Parse(data)
		if err != nil {
			// Log warning but continue processing other files
			r.logger.Warn("skipping invalid recipe", interfaces.F("file", entry.Name()), interfaces.F("error", err))
			continue
		}

		recipes = append(recipes, def)
	}

	return recipes, nil
}
