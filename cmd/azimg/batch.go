package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manash/azimg/internal/batch"
	"github.com/manash/azimg/pkg/models"
)

var (
	flagOutputDir   string
	flagStopOnError bool
	flagDelay       int
)

func newBatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Generate one image set per prompt of a .txt or .json file",
		Long: `batch submits every prompt of a file in order, one request at a time.

A .txt file holds one prompt per line; blank lines and lines starting with #
are skipped. A .json file holds an array of {"prompt": "...", "name": "..."}
objects, where name optionally replaces the generated file name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, app)
		},
	}

	addParamFlags(cmd)
	cmd.Flags().StringVarP(&flagOutputDir, "output-dir", "d", ".", "directory for the generated images")
	cmd.Flags().BoolVar(&flagStopOnError, "stop-on-error", false, "stop at the first failed prompt")
	cmd.Flags().IntVar(&flagDelay, "delay", 0, "delay between requests in milliseconds")

	return cmd
}

func runBatch(cmd *cobra.Command, args []string, app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	items, err := batch.ParseFile(args[0])
	if err != nil {
		return err
	}
	if flagDelay < 0 {
		return fmt.Errorf("--delay must not be negative")
	}

	patch, err := paramsPatch(cmd.Flags())
	if err != nil {
		return err
	}

	sess, err := app.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	sess.state().SetParams(models.ModeGeneration, patch)
	params := sess.state().Snapshot().Generation.Params
	est := sess.studio.Estimate(models.ModeGeneration)

	fmt.Fprintf(app.Out, "Processing %d prompt(s), estimated %s each\n\n", len(items), est)

	proc := batch.NewProcessor(sess.studio, app.NewSaver(flagOutputDir), app.Out, app.Err)
	results, err := proc.Process(ctx, items, &batch.Options{
		Format:      params.OutputFormat,
		StopOnError: flagStopOnError,
		DelayMs:     flagDelay,
	})
	proc.PrintSummary(results)
	return err
}
