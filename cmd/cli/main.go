// Command rating is the developer CLI for the premium rating core.
package main

import (
	"os"

	"premium-rating/cmd/cli/cmd"
	"premium-rating/internal/logging"
)

func main() {
	defer logging.Sync()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
