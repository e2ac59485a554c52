// Package services implements the pure recipe stages: version resolution,
// platform profile selection, environment composition and step planning.
package services

import (
	"strconv"
	"strings"
)

// TemplateVars are the run-time values substituted into recipe templates.
// Placeholders are written as {install_dir}, {version}, {major}, {minor}
// and {workers}.
type TemplateVars struct {
	InstallDir string
	Version    string
	Workers    int
}

// Expand substitutes every known placeholder in s
func (v TemplateVars) Expand(s string) string {
	return v.replacer().Replace(s)
}

// ExpandAll substitutes placeholders in every element of in
func (v TemplateVars) ExpandAll(in []string) []string {
	r := v.replacer()
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = r.Replace(s)
	}
	return out
}

func (v TemplateVars) replacer() *strings.Replacer {
	major, minor := splitVersion(v.Version)
	return strings.NewReplacer(
		"{install_dir}", v.InstallDir,
		"{version}", v.Version,
		"{major}", major,
		"{minor}", minor,
		"{workers}", strconv.Itoa(v.Workers),
	)
}

func splitVersion(version string) (major, minor string) {
	parts := strings.SplitN(version, ".", 3)
	major = parts[0]
	if len(parts) > 1 {
		minor = parts[1]
	}
	return major, minor
}
