package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/manash/azimg/internal/studio"
	"github.com/manash/azimg/pkg/models"
)

var (
	flagSize        string
	flagQuality     string
	flagCount       int
	flagFormat      string
	flagCompression int
	flagStream      bool
	flagUser        string
	flagOutput      string
	flagShow        bool
	flagImages      []string
	flagMask        string
	flagFidelity    string
)

// paramFlags are the flag names ParamsPatch.Set understands.
var paramFlags = map[string]bool{
	"size": true, "quality": true, "count": true, "format": true,
	"compression": true, "stream": true, "user": true, "fidelity": true,
}

func addParamFlags(cmd *cobra.Command) {
	defaults := models.DefaultGenerationParameters()
	cmd.Flags().StringVarP(&flagSize, "size", "s", string(defaults.Size), "image size (1024x1024, 1024x1536, 1536x1024, square, portrait, landscape)")
	cmd.Flags().StringVarP(&flagQuality, "quality", "q", string(defaults.Quality), "quality (low, medium, high)")
	cmd.Flags().IntVarP(&flagCount, "count", "n", defaults.N, "number of images (1-10)")
	cmd.Flags().StringVarP(&flagFormat, "format", "f", string(defaults.OutputFormat), "output format (png, jpeg)")
	cmd.Flags().IntVar(&flagCompression, "compression", defaults.OutputCompression, "output compression (0-100)")
	cmd.Flags().BoolVar(&flagStream, "stream", false, "forward the stream flag to the service")
	cmd.Flags().StringVar(&flagUser, "user", "", "end-user identifier sent with the request")
}

// paramsPatch turns the parameter flags set on the command line into a
// patch; flags left at their defaults keep the session parameters.
func paramsPatch(flags *pflag.FlagSet) (models.ParamsPatch, error) {
	var patch models.ParamsPatch
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil || !paramFlags[f.Name] {
			return
		}
		err = patch.Set(f.Name, f.Value.String())
	})
	return patch, err
}

func newGenerateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate images from a text prompt",
		Example: `  azimg generate "a sunset over mountains"
  azimg generate -s landscape -q medium -n 2 "panoramic cityscape"
  azimg generate -f jpeg --compression 80 -o city.jpeg "city at night"`,
		Aliases: []string{"gen"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args, app)
		},
	}

	addParamFlags(cmd)
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output filename (numbered when several images are returned)")
	cmd.Flags().BoolVar(&flagShow, "show", false, "preview the images inline (kitty, ghostty, iTerm2, WezTerm)")

	return cmd
}

func runGenerate(cmd *cobra.Command, args []string, app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

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

	fmt.Fprintf(app.Out, "Generating %d image(s) with %s...\n", params.N, models.ImageModel)

	images, err := sess.studio.Generate(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	return app.deliver(sess, models.ModeGeneration, images)
}

func newEditCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit [prompt]",
		Short: "Edit one or more source images with a text prompt",
		Example: `  azimg edit -i photo.png "make it look like a watercolor"
  azimg edit -i room.jpg -i sofa.png --mask mask.png "place the sofa by the window"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, args, app)
		},
	}

	addParamFlags(cmd)
	cmd.Flags().StringArrayVarP(&flagImages, "image", "i", nil, "source image (png or jpeg, repeatable)")
	cmd.Flags().StringVar(&flagMask, "mask", "", "mask image (png); transparent areas are edited")
	cmd.Flags().StringVar(&flagFidelity, "fidelity", string(models.FidelityHigh), "input fidelity (low, medium, high)")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output filename (numbered when several images are returned)")
	cmd.Flags().BoolVar(&flagShow, "show", false, "preview the images inline (kitty, ghostty, iTerm2, WezTerm)")

	return cmd
}

func runEdit(cmd *cobra.Command, args []string, app *App) error {
	ctx, cancel := signalContext()
	defer cancel()

	patch, err := paramsPatch(cmd.Flags())
	if err != nil {
		return err
	}

	files := make([]models.InputFile, 0, len(flagImages))
	for _, path := range flagImages {
		f, err := studio.ReadInputFile(path)
		if err != nil {
			return err
		}
		files = append(files, f)
	}

	sess, err := app.openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.studio.AddImages(files...); err != nil {
		return err
	}
	if flagMask != "" {
		mask, err := studio.ReadInputFile(flagMask)
		if err != nil {
			return err
		}
		if err := sess.studio.SetMask(mask); err != nil {
			return err
		}
	}
	sess.state().SetParams(models.ModeEdit, patch)

	fmt.Fprintf(app.Out, "Editing %d image(s) with %s...\n", len(files), models.ImageModel)

	images, err := sess.studio.Edit(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("edit failed: %w", err)
	}

	return app.deliver(sess, models.ModeEdit, images)
}

// deliver saves the images of a finished submission and reports them.
func (app *App) deliver(sess *session, mode models.Mode, images []models.ImageResult) error {
	saver := app.NewSaver("")
	paths, err := saver.SaveAll(images, flagOutput)
	if err != nil {
		return err
	}

	if flagShow {
		if d := app.displayer(); d != nil {
			if err := d.DisplayAll(images); err != nil {
				fmt.Fprintf(app.Err, "Warning: failed to display: %v\n", err)
			}
		} else {
			fmt.Fprintln(app.Err, "Warning: --show requires a terminal with kitty graphics support")
		}
	}

	for _, path := range paths {
		fmt.Fprintf(app.Out, "Saved: %s\n", path)
	}
	for _, img := range images {
		if img.RevisedPrompt != "" {
			fmt.Fprintf(app.Out, "Revised prompt: %s\n", img.RevisedPrompt)
			break
		}
	}

	est := sess.studio.Estimate(mode)
	fmt.Fprintf(app.Out, "Estimated cost: $%.4f (%d image(s) @ $%.4f/image)\n",
		est.PerImage*float64(len(images)), len(images), est.PerImage)
	return nil
}
