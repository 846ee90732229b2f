//go:build !windows

package config

import (
	"os"
	"path/filepath"
)

func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	return []string{
		"sentinel.yaml",
		filepath.Join(home, ".sentinel", "config.yaml"),
		"/etc/sentinel/sentinel.yaml",
	}
}
