package main

import (
	"context"
	"fmt"

	"github.com/ochairo/cauldron/internal/config"
)

// BuildCmd runs a complete build
type BuildCmd struct {
	Recipe  string `arg:"" help:"Recipe name (e.g. python3)."`
	Version string `arg:"" optional:"" help:"Version to build, or 'latest'; the recipe default when omitted."`

	PackageDir string `name:"package-dir" help:"Write a tarball of the installation root here after a successful build." placeholder:"DIR" type:"path"`
}

// Run executes the build command
func (c *BuildCmd) Run(ctx context.Context, cfg *config.Config, out *output) error {
	a, err := newApp(cfg, out)
	if err != nil {
		return err
	}
	req, err := a.request(c.Recipe, c.Version)
	if err != nil {
		return err
	}
	req.PackageDir = c.PackageDir

	result, err := a.orchestrator.Build(ctx, req)
	if result != nil {
		out.printf("%s\n", result.Summary())
		if err != nil && result.Result != nil && result.Result.Output != "" {
			out.printf("\nOutput of %s:\n%s\n", result.Result.FailedStep, result.Result.Output)
		}
	}
	if err != nil {
		return fmt.Errorf("build %s: %w", c.Recipe, err)
	}
	return nil
}
