package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var flagLimit int

func newGalleryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "List archived images",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runGalleryList(app)
		},
	}
	cmd.Flags().IntVarP(&flagLimit, "limit", "l", 20, "number of most recent images to list (0 for all)")

	saveCmd := &cobra.Command{
		Use:   "save <image-id> [file]",
		Short: "Save an archived image to a file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			return runGallerySave(app, args)
		},
	}

	cmd.AddCommand(saveCmd)
	return cmd
}

func runGalleryList(app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	sess, err := app.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	total, err := sess.archive.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count images: %w", err)
	}
	if total == 0 {
		fmt.Fprintln(app.Out, "No images archived yet")
		return nil
	}

	records, err := sess.archive.List(ctx, flagLimit)
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}

	fmt.Fprintf(app.Out, "%-16s  %-10s  %-16s  %s\n", "ID", "Mode", "Created", "Prompt")
	fmt.Fprintln(app.Out, strings.Repeat("-", 80))
	for _, rec := range records {
		fmt.Fprintf(app.Out, "%-16s  %-10s  %-16s  %q\n",
			rec.Entry.Image.ID,
			rec.Entry.Mode,
			humanize.Time(rec.Entry.CreatedAt),
			truncate(rec.Entry.Prompt, 40))
	}
	if len(records) < total {
		fmt.Fprintf(app.Out, "(%d of %d images, use --limit 0 to list all)\n", len(records), total)
	}
	return nil
}

func runGallerySave(app *App, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sess, err := app.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	rec, err := sess.archive.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("image %s not found in gallery: %w", args[0], err)
	}

	var dest string
	if len(args) == 2 {
		dest = args[1]
	}
	path, err := app.NewSaver("").Save(rec.Entry.Image, dest)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Saved: %s\n", path)
	return nil
}

func newCostCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cost",
		Short: "Show the estimated spend recorded so far",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCost(app)
		},
	}
}

func runCost(app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	sess, err := app.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	summary, err := sess.archive.TotalCost(ctx)
	if err != nil {
		return err
	}
	if summary.EntryCount == 0 {
		fmt.Fprintln(app.Out, "No costs recorded yet.")
		return nil
	}
	fmt.Fprintf(app.Out, "Total cost: $%.4f (%d image(s), %d request(s))\n",
		summary.TotalCost, summary.ImageCount, summary.EntryCount)
	return nil
}

// truncate shortens s to maxLen runes, ending in "...".
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
