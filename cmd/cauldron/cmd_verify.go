package main

import (
	"context"
	"fmt"

	"github.com/ochairo/cauldron/internal/config"
)

// VerifyCmd fetches a source archive and checks it without building
type VerifyCmd struct {
	Recipe  string `arg:"" help:"Recipe name (e.g. python3)."`
	Version string `arg:"" optional:"" help:"Version to verify, or 'latest'; the recipe default when omitted."`
}

// Run executes the verify command
func (c *VerifyCmd) Run(ctx context.Context, cfg *config.Config, out *output) error {
	a, err := newApp(cfg, out)
	if err != nil {
		return err
	}
	req, err := a.request(c.Recipe, c.Version)
	if err != nil {
		return err
	}

	prep, archive, err := a.orchestrator.Verify(ctx, req)
	if err != nil {
		return fmt.Errorf("verify %s: %w", c.Recipe, err)
	}
	if prep.Profile.Noop {
		out.printf("%s has no profile for %s; nothing to verify\n", prep.Recipe.Name, req.Platform)
		return nil
	}

	out.printf("✓ %s %s\n", prep.Source.Component, prep.Source.Version)
	out.printf("  Source:   %s\n", prep.Source.URL)
	out.printf("  Checksum: %s\n", prep.Source.Digest())
	if cfg.VerifySignatures && prep.Source.SignatureURL != "" {
		out.printf("  Signature: %s\n", prep.Source.SignatureURL)
	}
	out.printf("  Archive:  %s\n", archive)
	return nil
}
