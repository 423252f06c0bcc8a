package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/yndnr/wspool-go/internal/cli/output"
	"github.com/yndnr/wspool-go/internal/telemetry/logger"
	"github.com/yndnr/wspool-go/pkg/wspool"
)

// Shell executes interactive commands against a live connection pool.
// It implements the repl package's Executor interface.
//
// Lifecycle events land on the logger, not on the command output, so
// they do not tear the prompt.
type Shell struct {
	manager *wspool.Manager
	server  string
	log     logger.Logger
}

// NewShell creates a shell bound to the manager. server is the URL
// used by create when none is given.
func NewShell(m *wspool.Manager, server string, log logger.Logger) *Shell {
	return &Shell{manager: m, server: server, log: log}
}

// Execute dispatches one command line, already split into fields.
func (s *Shell) Execute(out io.Writer, args []string) error {
	if len(args) == 0 {
		return nil
	}
	switch args[0] {
	case "create":
		return s.create(out, args[1:])
	case "open":
		return s.open(out, args[1:])
	case "send":
		return s.send(out, args[1:])
	case "close":
		return s.close(out, args[1:])
	case "info":
		return s.info(out, args[1:])
	case "list":
		return s.list(out)
	case "help":
		return s.help(out)
	default:
		return fmt.Errorf("unknown command %q, try help", args[0])
	}
}

func (s *Shell) create(out io.Writer, args []string) error {
	url := s.server
	if len(args) > 0 {
		url = args[0]
	}
	c, err := s.manager.CreateConnection(url)
	if err != nil {
		return err
	}
	if err := c.SetCallbacks(s.callbacks()); err != nil {
		return err
	}
	fmt.Fprintf(out, "created %s (#%d)\n", c.ID(), s.manager.Count())
	return nil
}

func (s *Shell) callbacks() wspool.Callbacks {
	return wspool.Callbacks{
		OnOpen: func(id string) {
			s.log.Info("connection open", "connection_id", id)
		},
		OnFail: func(id string, reason error) {
			s.log.Warn("connection failed", "connection_id", id, "error", reason)
		},
		OnClose: func(id string) {
			s.log.Info("connection closed", "connection_id", id)
		},
		OnMessage: func(id, payload string) {
			s.log.Info("message received", "connection_id", id, "payload", payload)
		},
	}
}

func (s *Shell) open(out io.Writer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: open <id|#>")
	}
	c, err := s.resolve(args[0])
	if err != nil {
		return err
	}
	if err := s.manager.Open(c); err != nil {
		return err
	}
	fmt.Fprintf(out, "opening %s\n", c.ID())
	return nil
}

func (s *Shell) send(out io.Writer, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: send <id|#> <message>")
	}
	c, err := s.resolve(args[0])
	if err != nil {
		return err
	}
	payload := strings.Join(args[1:], " ")
	if err := s.manager.Send(c, payload); err != nil {
		return err
	}
	fmt.Fprintf(out, "sent %d bytes to %s\n", len(payload), c.ID())
	return nil
}

func (s *Shell) close(out io.Writer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: close <id|#>, or close all")
	}
	if args[0] == "all" {
		if err := s.manager.CloseAllConnections(context.Background()); err != nil {
			return err
		}
		fmt.Fprintln(out, "closed all connections")
		return nil
	}
	c, err := s.resolve(args[0])
	if err != nil {
		return err
	}
	if err := s.manager.Close(c); err != nil {
		return err
	}
	fmt.Fprintf(out, "closing %s\n", c.ID())
	return nil
}

func (s *Shell) info(out io.Writer, args []string) error {
	if len(args) == 0 {
		return s.summary(out)
	}
	c, err := s.resolve(args[0])
	if err != nil {
		return err
	}
	f := &output.TableFormatter{Wide: true}
	return f.Format(out, c.Info())
}

// summary prints pool-level counts grouped by state.
func (s *Shell) summary(out io.Writer) error {
	conns := s.manager.Connections()
	fmt.Fprintf(out, "connections: %d\n", len(conns))

	counts := make(map[string]int)
	for _, c := range conns {
		counts[c.State().String()]++
	}
	states := make([]string, 0, len(counts))
	for state := range counts {
		states = append(states, state)
	}
	sort.Strings(states)
	for _, state := range states {
		fmt.Fprintf(out, "  %s: %d\n", state, counts[state])
	}
	return nil
}

func (s *Shell) list(out io.Writer) error {
	conns := s.manager.Connections()
	if len(conns) == 0 {
		fmt.Fprintln(out, "no connections")
		return nil
	}
	f := &output.TableFormatter{}
	return f.Format(out, connectionRows(conns))
}

func (s *Shell) help(out io.Writer) error {
	fmt.Fprint(out, `Commands:
  create [URL]       create a connection (default: configured server)
  open <id|#>        start the connection's handshake
  send <id|#> <msg>  send a text message
  close <id|#>       close one connection
  close all          close every connection
  info [id|#]        connection details, or a pool summary
  list               list connections in creation order
  help               show this help
  exit               leave the shell
`)
	return nil
}

// resolve maps a connection reference to a live connection. Numeric
// references are 1-based positions in creation order; anything else is
// treated as a connection ID.
func (s *Shell) resolve(ref string) (*wspool.Connection, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		conns := s.manager.Connections()
		if n < 1 || n > len(conns) {
			return nil, fmt.Errorf("no connection #%d, have %d", n, len(conns))
		}
		return conns[n-1], nil
	}
	c, ok := s.manager.Get(ref)
	if !ok {
		return nil, fmt.Errorf("no connection %q", ref)
	}
	return c, nil
}
