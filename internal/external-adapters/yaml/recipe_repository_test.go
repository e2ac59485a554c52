package yaml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/cauldron/recipes"
)

func TestRecipeRepository_GetRecipe_Success(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "zlib.yml"), []byte(minimalRecipe), 0600))

	repo := NewDirRecipeRepository(tmpDir, nil)
	recipe, err := repo.GetRecipe(context.Background(), "zlib")
	require.NoError(t, err)
	assert.Equal(t, "zlib", recipe.Name)
}

func TestRecipeRepository_GetRecipe_Embedded(t *testing.T) {
	repo := NewRecipeRepository(recipes.FS, nil)
	recipe, err := repo.GetRecipe(context.Background(), "python3")
	require.NoError(t, err)
	assert.Equal(t, "python3", recipe.Name)
}

func TestRecipeRepository_GetRecipe_NotFound(t *testing.T) {
	repo := NewDirRecipeRepository(t.TempDir(), nil)

	_, err := repo.GetRecipe(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRecipeNotFound))
}

func TestRecipeRepository_GetRecipe_InvalidName(t *testing.T) {
	repo := NewRecipeRepository(fstest.MapFS{}, nil)

	for _, name := range []string{"", "../etc/passwd", `a\b`} {
		_, err := repo.GetRecipe(context.Background(), name)
		assert.Error(t, err, name)
	}
}

func TestRecipeRepository_GetRecipe_NameMismatch(t *testing.T) {
	repo := NewRecipeRepository(fstest.MapFS{
		"other.yml": {Data: []byte(minimalRecipe)},
	}, nil)

	_, err := repo.GetRecipe(context.Background(), "other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `declares name "zlib"`)
}

func TestRecipeRepository_ListRecipes_SkipsInvalid(t *testing.T) {
	repo := NewRecipeRepository(fstest.MapFS{
		"zlib.yml":   {Data: []byte(minimalRecipe)},
		"broken.yml": {Data: []byte("description: no name\n")},
		"README.md":  {Data: []byte("# recipes\n")},
	}, nil)

	defs, err := repo.ListRecipes(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "zlib", defs[0].Name)
}
