package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// envFiles are tried in order; the first one found wins.
var envFiles = []string{".env", ".env.local"}

// LoadEnvFile loads environment variables from the first .env file found in root.
// Existing process environment variables are not overwritten. It returns the
// loaded file path, or "" when none exists.
func LoadEnvFile(root string) (string, error) {
	for _, name := range envFiles {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return "", fmt.Errorf("failed to load %s: %w", path, err)
		}
		return path, nil
	}
	return "", nil
}
