//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package agent

import "os/exec"

func configureProcess(*exec.Cmd) {}
