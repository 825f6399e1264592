package agent

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv loads variables from .env files into the process environment.
// Values from the files override already-set shell values, so a .env in cwd
// wins over inherited configuration. With no arguments it loads "./.env";
// a missing ./.env is not an error.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
	}
	return godotenv.Overload(paths...)
}
