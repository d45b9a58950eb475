//go:build windows

package audit

import "os"

// Windows has no flock; the run lock already keeps a second process out.
func lockFile(_ *os.File) error   { return nil }
func unlockFile(_ *os.File) error { return nil }
