package conf

import (
	"crypto/rand"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/agrisense/farm-advisor/internal/errors"
	"github.com/agrisense/farm-advisor/internal/logger"
)

const appDirName = "farm-advisor"

// GetDefaultConfigPaths returns the config search path in priority order:
// the working directory, the user config directory and /etc.
func GetDefaultConfigPaths() ([]string, error) {
	userDir, err := UserConfigDir()
	if err != nil {
		return nil, err
	}
	return []string{
		".",
		userDir,
		filepath.Join("/etc", appDirName),
	}, nil
}

// UserConfigDir returns ~/.config/farm-advisor.
func UserConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New(err).
			Component("conf").
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}
	return filepath.Join(homeDir, ".config", appDirName), nil
}

// expandPath expands environment variables and a leading "~/".
func expandPath(path string) string {
	path = os.ExpandEnv(path)
	if strings.HasPrefix(path, "~/") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return path
}

// GenerateRandomSecret returns 256 bits of URL-safe base64 randomness.
func GenerateRandomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		GetLogger().Error("Failed to generate random secret", logger.Error(err))
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
