package main

import (
	"context"
	"errors"
	"strings"

	"github.com/ochairo/cauldron/internal/config"
)

// OutdatedCmd reports recipes whose upstream announces newer versions
type OutdatedCmd struct {
	Recipes []string `arg:"" optional:"" help:"Recipes to check; all recipes when omitted."`
}

// Run executes the outdated command
func (c *OutdatedCmd) Run(ctx context.Context, cfg *config.Config, out *output) error {
	a, err := newApp(cfg, out)
	if err != nil {
		return err
	}

	reports, err := a.upstream.Check(ctx, c.Recipes...)
	if err != nil {
		return err
	}

	var errs []error
	for _, r := range reports {
		switch {
		case r.Skipped:
			out.printf("  %-20s %-10s no upstream declared\n", r.Recipe, r.Declared)
		case r.Err != nil:
			out.printf("✗ %-20s %-10s %v\n", r.Recipe, r.Declared, r.Err)
			errs = append(errs, r.Err)
		case r.Outdated():
			out.printf("↑ %-20s %-10s newer: %s\n", r.Recipe, r.Declared, strings.Join(r.Newer, ", "))
		default:
			out.printf("✓ %-20s %-10s up to date\n", r.Recipe, r.Declared)
		}
	}
	return errors.Join(errs...)
}
