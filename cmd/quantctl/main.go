// quantctl drives a quantdesk profile from the terminal: it signs in
// against the platform API and inspects the state the shell persists.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd(newApp()).Execute(); err != nil {
		os.Exit(1)
	}
}
