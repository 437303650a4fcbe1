// Package main provides vaultrename, an atomic note-rename engine for
// Markdown vaults that keeps wikilinks pointed at their targets.
package main

import (
	"os"
	"strings"

	"github.com/shayonpal/lifeos-vault-core/internal/cli"
)

func main() {
	environ := os.Environ()
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	exitCode := cli.Run(os.Stdout, os.Stderr, os.Args, env)

	os.Exit(exitCode)
}
