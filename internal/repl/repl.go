package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/manash/azimg/internal/display"
	"github.com/manash/azimg/internal/gallery"
	"github.com/manash/azimg/internal/image"
	"github.com/manash/azimg/internal/state"
	"github.com/manash/azimg/internal/studio"
)

// CostReport summarises the charges recorded so far.
type CostReport interface {
	TotalCost(ctx context.Context) (*gallery.CostSummary, error)
}

type REPL struct {
	in        io.Reader
	out       io.Writer
	err       io.Writer
	studio    *studio.Studio
	costs     CostReport
	displayer *display.Displayer
	saver     *image.Saver
	commands  map[string]Command
	running   bool
}

// Config wires a REPL. Displayer and Costs are optional.
type Config struct {
	In        io.Reader
	Out       io.Writer
	Err       io.Writer
	Studio    *studio.Studio
	Costs     CostReport
	Displayer *display.Displayer
	Saver     *image.Saver
}

func New(cfg *Config) *REPL {
	r := &REPL{
		in:        cfg.In,
		out:       cfg.Out,
		err:       cfg.Err,
		studio:    cfg.Studio,
		costs:     cfg.Costs,
		displayer: cfg.Displayer,
		saver:     cfg.Saver,
		commands:  make(map[string]Command),
	}
	if r.saver == nil {
		r.saver = image.NewSaver("")
	}
	r.registerCommands()
	return r
}

func (r *REPL) Run(ctx context.Context) error {
	r.running = true
	r.printWelcome()

	scanner := bufio.NewScanner(r.in)
	for r.running {
		r.printPrompt()
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := r.execute(ctx, line); err != nil {
			fmt.Fprintf(r.err, "Error: %v\n", err)
		}
	}

	return scanner.Err()
}

func (r *REPL) execute(ctx context.Context, line string) error {
	parts := parseCommand(line)
	if len(parts) == 0 {
		return nil
	}

	cmdName := strings.ToLower(parts[0])
	args := parts[1:]

	cmd, ok := r.commands[cmdName]
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmdName)
	}

	return cmd.Execute(ctx, r, args)
}

func (r *REPL) Stop() {
	r.running = false
}

func (r *REPL) state() *state.Container {
	return r.studio.State()
}

func (r *REPL) printWelcome() {
	fmt.Fprintln(r.out, "azimg interactive mode")
	if !r.state().Config().IsComplete() {
		fmt.Fprintln(r.out, "The Azure OpenAI service is not configured yet: use 'config endpoint=... key=...'.")
	}
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'quit' to exit.")
	fmt.Fprintln(r.out)
}

func (r *REPL) printPrompt() {
	snap := r.state().Snapshot()
	var busy []string
	if snap.Generation.Loading {
		busy = append(busy, "generating")
	}
	if snap.Editing.Loading {
		busy = append(busy, "editing")
	}
	if len(busy) > 0 {
		fmt.Fprintf(r.out, "azimg [%s] (%s)> ", snap.ActiveView, strings.Join(busy, ", "))
		return
	}
	fmt.Fprintf(r.out, "azimg [%s]> ", snap.ActiveView)
}

func parseCommand(line string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)

	for _, ch := range line {
		switch {
		case ch == '"' || ch == '\'':
			if inQuotes && ch == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else if !inQuotes {
				inQuotes = true
				quoteChar = ch
			} else {
				current.WriteRune(ch)
			}
		case ch == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(ch)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}
