//go:build !unix

package trace

import "os/exec"

// killGroupOnCancel leaves the default Cancel in place; WaitDelay still
// bounds the wait on inherited pipes.
func killGroupOnCancel(cmd *exec.Cmd) {}
