package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ochairo/cauldron/internal/domain/entities"
	"github.com/ochairo/cauldron/internal/domain/services"
)

func TestNewerVersions(t *testing.T) {
	recipe := loadPython3(t)

	got := services.NewerVersions(recipe, []string{"3.6.7", "3.8.0", "3.7.1", "3.7.10", "3.7.2", "3.8.0", "latest", "2.7.18"})
	assert.Equal(t, []string{"3.7.2", "3.7.10", "3.8.0"}, got)

	assert.Empty(t, services.NewerVersions(recipe, []string{"3.6.7", "3.7.1"}))
	assert.Empty(t, services.NewerVersions(recipe, nil))
}

func TestNewerVersions_NoSemverBaseline(t *testing.T) {
	recipe := &entities.ComponentRecipe{
		Name: "tzdata",
		Source: entities.SourceSpec{Versions: []entities.VersionChecksum{
			{Version: "2024a"},
		}},
	}
	assert.Nil(t, services.NewerVersions(recipe, []string{"2024b", "1.0.0"}))
}
