package main

import (
	"github.com/spf13/cobra"

	"github.com/manash/azimg/internal/repl"
)

func newInteractiveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"i", "repl"},
		Short:   "Start an interactive session",
		Long: `interactive keeps the configuration, parameters, source images and
results of both modes in memory while you generate, edit and browse the
gallery. Type 'help' inside the session for the list of commands.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInteractive(app)
		},
	}
}

func runInteractive(app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	sess, err := app.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	r := repl.New(&repl.Config{
		In:        app.In,
		Out:       app.Out,
		Err:       app.Err,
		Studio:    sess.studio,
		Costs:     sess.archive,
		Displayer: app.displayer(),
		Saver:     app.NewSaver(""),
	})
	return r.Run(ctx)
}
