package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv applies KEY=VALUE pairs from dotenv files to the process
// environment. Missing files are skipped and variables that already hold a
// non-empty value are kept.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		for k, v := range values {
			if os.Getenv(k) != "" {
				continue
			}
			if err := os.Setenv(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}
