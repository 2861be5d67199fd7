//go:build !unix

package invoker

import "os/exec"

// Process groups are a unix concept; elsewhere exec.CommandContext's default
// Cancel (Process.Kill) applies.
func configureProcessGroup(*exec.Cmd) {}
