//go:build !unix

package gateways

import "os/exec"

// killProcessGroup keeps the default cancellation, which kills the direct child
func killProcessGroup(_ *exec.Cmd) {}
