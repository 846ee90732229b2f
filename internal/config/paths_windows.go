//go:build windows

package config

import (
	"os"
	"path/filepath"
)

func configSearchPaths() []string {
	local := os.Getenv("LOCALAPPDATA")
	programData := os.Getenv("ProgramData")
	return []string{
		"sentinel.yaml",
		filepath.Join(local, "Sentinel", "config.yaml"),
		filepath.Join(programData, "Sentinel", "sentinel.yaml"),
	}
}
