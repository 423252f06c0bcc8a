// Package repl provides the interactive shell mode for wspool-probe.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Executor runs a single parsed command line. The first field is the
// verb, the rest are its arguments.
type Executor interface {
	Execute(out io.Writer, args []string) error
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	executor  Executor
	completer *Completer
	history   *History
}

// New creates a new REPL instance driving the given executor.
func New(exec Executor) *REPL {
	return &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		executor:  exec,
		completer: NewCompleter(),
		history:   NewHistory(),
	}
}

// Run starts the REPL loop. It returns when the input reaches EOF or
// the user types exit/quit.
func (r *REPL) Run() error {
	_ = r.history.Load()
	defer func() { _ = r.history.Save() }()

	reader := bufio.NewReader(r.input)

	for {
		// Print prompt
		fmt.Fprint(r.output, "wspool> ")

		// Read line
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil {
			return err
		}

		// Trim and skip empty lines
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Add to history
		r.history.Add(line)

		// Handle special commands
		if line == "exit" || line == "quit" {
			return nil
		}

		// Execute command
		if err := r.execute(line); err != nil {
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}
	}
}

func (r *REPL) execute(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	return r.executor.Execute(r.output, args)
}
