package command

import (
	"bytes"
	"flag"
	"testing"

	"github.com/urfave/cli/v2"
)

// makeContext builds a CLI context with the global flags parsed from
// args, for exercising actions and helpers directly.
func makeContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()

	app := &cli.App{Name: "wspool-probe", Flags: globalFlags()}
	set := flag.NewFlagSet("wspool-probe", flag.ContinueOnError)
	for _, f := range app.Flags {
		if err := f.Apply(set); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
	}
	if err := set.Parse(args); err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}
	return cli.NewContext(app, set, nil)
}

// runApp runs the full application with the given arguments and
// returns its captured output.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	app := App()
	app.Writer = &buf

	argv := append([]string{"wspool-probe"}, args...)
	err := app.Run(argv)
	return buf.String(), err
}
