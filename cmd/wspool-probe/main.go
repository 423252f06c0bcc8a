// Package main provides the entry point for wspool-probe.
//
// wspool-probe exercises a pool of secure WebSocket connections
// against a broker, in one-shot probe mode or an interactive shell.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/yndnr/wspool-go/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, command.ErrAllConnectionsFailed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
