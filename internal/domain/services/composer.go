package services

import (
	"maps"

	"github.com/ochairo/cauldron/internal/domain/entities"
)

// Compose merges the recipe's base environment with the profile overrides
// and expands templates against vars. Profile keys win on collision; base
// keys the profile does not mention pass through unchanged.
func Compose(base map[string]string, profile *entities.PlatformProfile, vars TemplateVars) entities.Environment {
	merged := make(map[string]string, len(base))
	maps.Copy(merged, base)
	if profile != nil {
		maps.Copy(merged, profile.Env)
	}

	r := vars.replacer()
	for k, v := range merged {
		merged[k] = r.Replace(v)
	}
	return entities.NewEnvironment(merged)
}
