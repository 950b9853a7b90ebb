// Package main provides intelweb, a disk-resident bidirectional threat-intel
// crawl engine: ingest "context from to" telemetry lines into a forward and
// reverse hash table, then crawl from known-bad indicators to find every
// entity and interaction reachable without crossing a globally-popular node.
package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cyberintel/intelweb/internal/cli"
)

func main() {
	environ := os.Environ()
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	exitCode := cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args, env, sigCh)

	os.Exit(exitCode)
}
