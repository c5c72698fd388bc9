package repl

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/manash/azimg/internal/security"
	"github.com/manash/azimg/internal/state"
	"github.com/manash/azimg/internal/studio"
	"github.com/manash/azimg/pkg/models"
)

type Command interface {
	Name() string
	Aliases() []string
	Description() string
	Usage() string
	Execute(ctx context.Context, r *REPL, args []string) error
}

func allCommands() []Command {
	return []Command{
		&GenerateCommand{},
		&EditCommand{},
		&ImageCommand{},
		&MaskCommand{},
		&ParamsCommand{},
		&ConfigCommand{},
		&ResultsCommand{},
		&GalleryCommand{},
		&SaveCommand{},
		&ShowCommand{},
		&RevisedCommand{},
		&ViewCommand{},
		&CostCommand{},
		&HelpCommand{},
		&QuitCommand{},
	}
}

func (r *REPL) registerCommands() {
	for _, cmd := range allCommands() {
		r.commands[cmd.Name()] = cmd
		for _, alias := range cmd.Aliases() {
			r.commands[alias] = cmd
		}
	}
}

// GenerateCommand submits a prompt in generation mode
type GenerateCommand struct{}

func (c *GenerateCommand) Name() string        { return "generate" }
func (c *GenerateCommand) Aliases() []string   { return []string{"gen", "g"} }
func (c *GenerateCommand) Description() string { return "Generate images from a prompt" }
func (c *GenerateCommand) Usage() string       { return "generate <prompt>" }

func (c *GenerateCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	_ = r.state().SetActiveView(models.ViewGenerate)

	params := r.state().Snapshot().Generation.Params
	fmt.Fprintf(r.out, "Generating %d image(s) with %s (estimated %s)...\n",
		params.N, models.ImageModel, r.studio.Estimate(models.ModeGeneration))

	images, err := r.studio.Generate(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	r.reportResults(images)
	return nil
}

// EditCommand submits a prompt with the pending source images
type EditCommand struct{}

func (c *EditCommand) Name() string        { return "edit" }
func (c *EditCommand) Aliases() []string   { return []string{"e"} }
func (c *EditCommand) Description() string { return "Edit the pending source images with a prompt" }
func (c *EditCommand) Usage() string       { return "edit <prompt>" }

func (c *EditCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	_ = r.state().SetActiveView(models.ViewEdit)

	images, mask := r.studio.Inputs()
	withMask := ""
	if mask != nil {
		withMask = " and a mask"
	}
	fmt.Fprintf(r.out, "Editing %d source image(s)%s (estimated %s)...\n",
		len(images), withMask, r.studio.Estimate(models.ModeEdit))

	results, err := r.studio.Edit(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("edit failed: %w", err)
	}
	r.reportResults(results)
	return nil
}

func (r *REPL) reportResults(images []models.ImageResult) {
	fmt.Fprintf(r.out, "Received %d image(s):\n", len(images))
	for _, img := range images {
		if !img.HasData() {
			fmt.Fprintf(r.out, "  %s (no image data)\n", img.ID)
			continue
		}
		fmt.Fprintf(r.out, "  %s\n", img.ID)
		if r.displayer != nil {
			if err := r.displayer.Display(img); err != nil {
				fmt.Fprintf(r.err, "Warning: failed to display: %v\n", err)
			}
		}
		if img.RevisedPrompt != "" {
			fmt.Fprintf(r.out, "    Revised prompt: %s\n", truncate(img.RevisedPrompt, 70))
		}
	}
	fmt.Fprintln(r.out, "Use 'save <id> [file]' to download an image.")
}

// ImageCommand manages the source images of the next edit
type ImageCommand struct{}

func (c *ImageCommand) Name() string        { return "image" }
func (c *ImageCommand) Aliases() []string   { return []string{"img", "i"} }
func (c *ImageCommand) Description() string { return "Manage edit source images (add, rm, list, clear)" }
func (c *ImageCommand) Usage() string       { return "image <add <file>...|rm <n>|list|clear>" }

func (c *ImageCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return c.list(r)
	}

	subCmd := strings.ToLower(args[0])
	subArgs := args[1:]

	switch subCmd {
	case "add":
		if len(subArgs) == 0 {
			return fmt.Errorf("usage: image add <file>...")
		}
		return c.add(r, subArgs)
	case "rm", "remove":
		if len(subArgs) != 1 {
			return fmt.Errorf("usage: image rm <n>")
		}
		n, err := strconv.Atoi(subArgs[0])
		if err != nil {
			return fmt.Errorf("invalid image number %q", subArgs[0])
		}
		if err := r.studio.RemoveImage(n - 1); err != nil {
			return err
		}
		return c.list(r)
	case "list", "ls":
		return c.list(r)
	case "clear":
		r.studio.ClearImages()
		fmt.Fprintln(r.out, "Source images cleared")
		return nil
	default:
		return fmt.Errorf("unknown image command: %s", subCmd)
	}
}

func (c *ImageCommand) add(r *REPL, paths []string) error {
	files := make([]models.InputFile, 0, len(paths))
	for _, path := range paths {
		f, err := studio.ReadInputFile(path)
		if err != nil {
			return err
		}
		files = append(files, f)
	}

	before, _ := r.studio.Inputs()
	rejected := r.studio.AddImages(files...)
	after, _ := r.studio.Inputs()

	fmt.Fprintf(r.out, "Added %d image(s)\n", len(after)-len(before))
	if err := c.list(r); err != nil {
		return err
	}
	return rejected
}

func (c *ImageCommand) list(r *REPL) error {
	images, mask := r.studio.Inputs()
	if len(images) == 0 {
		fmt.Fprintln(r.out, "No source images")
	}
	for _, info := range images {
		fmt.Fprintf(r.out, "  [%d] %s (%s, %s)\n", info.Index+1, info.Name, info.ContentType, info.Size)
	}
	if mask != nil {
		fmt.Fprintf(r.out, "  mask: %s (%s)\n", mask.Name, mask.Size)
	}
	return nil
}

// MaskCommand sets or clears the edit mask
type MaskCommand struct{}

func (c *MaskCommand) Name() string        { return "mask" }
func (c *MaskCommand) Aliases() []string   { return nil }
func (c *MaskCommand) Description() string { return "Set or clear the edit mask (png only)" }
func (c *MaskCommand) Usage() string       { return "mask <set <file>|clear>" }

func (c *MaskCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	switch strings.ToLower(args[0]) {
	case "set":
		if len(args) != 2 {
			return fmt.Errorf("usage: mask set <file>")
		}
		f, err := studio.ReadInputFile(args[1])
		if err != nil {
			return err
		}
		if err := r.studio.SetMask(f); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Mask set: %s\n", f.Name)
		return nil
	case "clear":
		r.studio.ClearMask()
		fmt.Fprintln(r.out, "Mask cleared")
		return nil
	default:
		return fmt.Errorf("unknown mask command: %s", args[0])
	}
}

// ParamsCommand shows or changes the parameters of a mode
type ParamsCommand struct{}

func (c *ParamsCommand) Name() string        { return "params" }
func (c *ParamsCommand) Aliases() []string   { return []string{"p", "set"} }
func (c *ParamsCommand) Description() string { return "Show or change request parameters" }
func (c *ParamsCommand) Usage() string {
	return "params [generation|edit] [size=... quality=... n=... format=... compression=... stream=... user=... fidelity=...]"
}

func (c *ParamsCommand) Execute(_ context.Context, r *REPL, args []string) error {
	mode := modeForView(r.state().Snapshot().ActiveView)
	if len(args) > 0 {
		if m, ok := parseMode(args[0]); ok {
			mode = m
			args = args[1:]
		}
	}

	if len(args) > 0 {
		var patch models.ParamsPatch
		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("expected key=value, got %q", arg)
			}
			if err := patch.Set(key, value); err != nil {
				return err
			}
		}
		r.state().SetParams(mode, patch)
	}

	c.print(r, mode)
	return nil
}

func (c *ParamsCommand) print(r *REPL, mode models.Mode) {
	snap := r.state().Snapshot()
	params := snap.Generation.Params
	if mode == models.ModeEdit {
		params = snap.Editing.Params.GenerationParameters
	}

	fmt.Fprintf(r.out, "%s parameters:\n", mode)
	fmt.Fprintf(r.out, "  size:               %s\n", params.Size)
	fmt.Fprintf(r.out, "  quality:            %s\n", params.Quality)
	fmt.Fprintf(r.out, "  n:                  %d\n", params.N)
	fmt.Fprintf(r.out, "  output_format:      %s\n", params.OutputFormat)
	fmt.Fprintf(r.out, "  output_compression: %d\n", params.OutputCompression)
	fmt.Fprintf(r.out, "  stream:             %t\n", params.Stream)
	if params.User != "" {
		fmt.Fprintf(r.out, "  user:               %s\n", params.User)
	}
	if mode == models.ModeEdit {
		fmt.Fprintf(r.out, "  input_fidelity:     %s\n", snap.Editing.Params.InputFidelity)
	}
	fmt.Fprintf(r.out, "  estimated cost:     %s\n", r.studio.Estimate(mode))
}

// ConfigCommand shows or changes the service configuration
type ConfigCommand struct{}

func (c *ConfigCommand) Name() string        { return "config" }
func (c *ConfigCommand) Aliases() []string   { return []string{"cfg"} }
func (c *ConfigCommand) Description() string { return "Show or change the Azure OpenAI configuration" }
func (c *ConfigCommand) Usage() string {
	return "config [endpoint=... key=... deployment=... version=...]"
}

func (c *ConfigCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) > 0 {
		var patch models.ConfigPatch
		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("expected key=value, got %q", arg)
			}
			if err := patch.Set(key, value); err != nil {
				return err
			}
		}
		if patch.Endpoint != nil && *patch.Endpoint != "" {
			if err := security.ValidateEndpoint(*patch.Endpoint); err != nil {
				return fmt.Errorf("invalid endpoint: %w", err)
			}
		}
		r.state().SetConfig(patch)
		fmt.Fprintln(r.out, "Configuration updated")
	}

	printConfig(r, r.state().Config())
	return nil
}

func printConfig(r *REPL, cfg models.Configuration) {
	fmt.Fprintf(r.out, "  endpoint:    %s\n", orUnset(cfg.Endpoint))
	fmt.Fprintf(r.out, "  api key:     %s\n", orUnset(models.MaskKey(cfg.APIKey)))
	fmt.Fprintf(r.out, "  deployment:  %s\n", orUnset(cfg.DeploymentName))
	fmt.Fprintf(r.out, "  api version: %s\n", orUnset(cfg.APIVersion))
	if !cfg.IsComplete() {
		fmt.Fprintf(r.out, "  status:      %v\n", models.ErrConfigIncomplete)
		return
	}
	fmt.Fprintln(r.out, "  status:      ready")
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// ResultsCommand lists the latest results of a mode
type ResultsCommand struct{}

func (c *ResultsCommand) Name() string        { return "results" }
func (c *ResultsCommand) Aliases() []string   { return []string{"r"} }
func (c *ResultsCommand) Description() string { return "List or clear the latest results of a mode" }
func (c *ResultsCommand) Usage() string       { return "results [generation|edit] [clear]" }

func (c *ResultsCommand) Execute(_ context.Context, r *REPL, args []string) error {
	snap := r.state().Snapshot()
	mode := modeForView(snap.ActiveView)
	if len(args) > 0 {
		if m, ok := parseMode(args[0]); ok {
			mode = m
			args = args[1:]
		}
	}

	if len(args) > 0 {
		if strings.ToLower(args[0]) != "clear" {
			return fmt.Errorf("usage: %s", c.Usage())
		}
		r.state().SetResults(mode, nil)
		fmt.Fprintf(r.out, "%s results cleared\n", mode)
		return nil
	}

	slice := snap.Slice(mode)
	switch {
	case slice.Loading:
		fmt.Fprintf(r.out, "%s request in progress\n", mode)
	case slice.Error != "":
		fmt.Fprintf(r.out, "%s error: %s\n", mode, slice.Error)
	case len(slice.Results) == 0:
		fmt.Fprintf(r.out, "No %s results yet\n", mode)
	}
	for _, img := range slice.Results {
		fmt.Fprintf(r.out, "  %s\n", img.ID)
	}
	return nil
}

// GalleryCommand browses the images of this session
type GalleryCommand struct{}

func (c *GalleryCommand) Name() string        { return "gallery" }
func (c *GalleryCommand) Aliases() []string   { return []string{"gal", "history", "h"} }
func (c *GalleryCommand) Description() string { return "Browse every image produced this session" }
func (c *GalleryCommand) Usage() string {
	return "gallery [show <id>|save <id> [file]|clear]"
}

func (c *GalleryCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	_ = r.state().SetActiveView(models.ViewGallery)

	if len(args) == 0 {
		return c.list(r)
	}

	subCmd := strings.ToLower(args[0])
	subArgs := args[1:]

	switch subCmd {
	case "list", "ls":
		return c.list(r)
	case "show":
		return (&ShowCommand{}).Execute(ctx, r, subArgs)
	case "save":
		return (&SaveCommand{}).Execute(ctx, r, subArgs)
	case "clear":
		r.state().ClearGallery()
		fmt.Fprintln(r.out, "Gallery cleared")
		return nil
	default:
		return fmt.Errorf("unknown gallery command: %s", subCmd)
	}
}

func (c *GalleryCommand) list(r *REPL) error {
	entries := r.state().Snapshot().Gallery
	if len(entries) == 0 {
		fmt.Fprintln(r.out, "Gallery is empty")
		return nil
	}

	for i, entry := range entries {
		fmt.Fprintf(r.out, "  [%d] %-16s %-10s %s  %q\n",
			i+1,
			entry.Image.ID,
			entry.Mode,
			entry.CreatedAt.Format("15:04:05"),
			truncate(entry.Prompt, 40))
	}
	return nil
}

// SaveCommand downloads an image to a file
type SaveCommand struct{}

func (c *SaveCommand) Name() string        { return "save" }
func (c *SaveCommand) Aliases() []string   { return []string{"s", "download"} }
func (c *SaveCommand) Description() string { return "Save an image to a file" }
func (c *SaveCommand) Usage() string       { return "save <id> [filename]" }

func (c *SaveCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	img, err := findImage(r.state().Snapshot(), args[0])
	if err != nil {
		return err
	}

	var destPath string
	if len(args) == 2 {
		destPath = args[1]
	}

	path, err := r.saver.Save(img, destPath)
	if err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}

	fmt.Fprintf(r.out, "Saved: %s\n", path)
	return nil
}

// ShowCommand previews an image inline
type ShowCommand struct{}

func (c *ShowCommand) Name() string        { return "show" }
func (c *ShowCommand) Aliases() []string   { return []string{"display"} }
func (c *ShowCommand) Description() string { return "Display an image inline" }
func (c *ShowCommand) Usage() string       { return "show <id>" }

func (c *ShowCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	if r.displayer == nil {
		return fmt.Errorf("inline preview is not supported by this terminal")
	}

	img, err := findImage(r.state().Snapshot(), args[0])
	if err != nil {
		return err
	}
	return r.displayer.Display(img)
}

// RevisedCommand prints the revised prompt of an image
type RevisedCommand struct{}

func (c *RevisedCommand) Name() string        { return "revised" }
func (c *RevisedCommand) Aliases() []string   { return []string{"rev"} }
func (c *RevisedCommand) Description() string { return "Print the prompt the service actually used" }
func (c *RevisedCommand) Usage() string       { return "revised <id>" }

func (c *RevisedCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	img, err := findImage(r.state().Snapshot(), args[0])
	if err != nil {
		return err
	}
	if img.RevisedPrompt == "" {
		fmt.Fprintln(r.out, "No revised prompt for this image")
		return nil
	}
	fmt.Fprintln(r.out, img.RevisedPrompt)
	return nil
}

// ViewCommand switches the active view
type ViewCommand struct{}

func (c *ViewCommand) Name() string        { return "view" }
func (c *ViewCommand) Aliases() []string   { return []string{"v"} }
func (c *ViewCommand) Description() string { return "Switch the active view" }
func (c *ViewCommand) Usage() string       { return "view <generate|edit|gallery>" }

func (c *ViewCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	if err := r.state().SetActiveView(models.View(strings.ToLower(args[0]))); err != nil {
		return fmt.Errorf("%w: %s (expected one of %v)", err, args[0], models.ValidViews())
	}
	fmt.Fprintf(r.out, "View: %s\n", r.state().Snapshot().ActiveView)
	return nil
}

// CostCommand shows estimates and recorded spend
type CostCommand struct{}

func (c *CostCommand) Name() string        { return "cost" }
func (c *CostCommand) Aliases() []string   { return []string{"$"} }
func (c *CostCommand) Description() string { return "Show the next request estimates and the recorded total" }
func (c *CostCommand) Usage() string       { return "cost" }

func (c *CostCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	fmt.Fprintf(r.out, "Next generation: %s\n", r.studio.Estimate(models.ModeGeneration))
	fmt.Fprintf(r.out, "Next edit:       %s\n", r.studio.Estimate(models.ModeEdit))

	if r.costs == nil {
		return nil
	}
	summary, err := r.costs.TotalCost(ctx)
	if err != nil {
		return err
	}
	if summary.EntryCount == 0 {
		fmt.Fprintln(r.out, "No costs recorded yet.")
		return nil
	}
	fmt.Fprintf(r.out, "Total cost: $%.4f (%d image(s))\n", summary.TotalCost, summary.ImageCount)
	return nil
}

// HelpCommand shows available commands
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Aliases() []string   { return []string{"?"} }
func (c *HelpCommand) Description() string { return "Show available commands" }
func (c *HelpCommand) Usage() string       { return "help" }

func (c *HelpCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	fmt.Fprintln(r.out, "Available commands:")
	fmt.Fprintln(r.out)

	for _, cmd := range allCommands() {
		aliases := ""
		if len(cmd.Aliases()) > 0 {
			aliases = fmt.Sprintf(" (%s)", strings.Join(cmd.Aliases(), ", "))
		}
		fmt.Fprintf(r.out, "  %-12s%s\n", cmd.Name()+aliases, cmd.Description())
		fmt.Fprintf(r.out, "               Usage: %s\n", cmd.Usage())
	}

	return nil
}

// QuitCommand exits the REPL
type QuitCommand struct{}

func (c *QuitCommand) Name() string        { return "quit" }
func (c *QuitCommand) Aliases() []string   { return []string{"exit", "q"} }
func (c *QuitCommand) Description() string { return "Exit interactive mode" }
func (c *QuitCommand) Usage() string       { return "quit" }

func (c *QuitCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	fmt.Fprintln(r.out, "Goodbye!")
	r.Stop()
	return nil
}

var errImageNotFound = errors.New("image not found")

// findImage looks an id up in both result slices, then the gallery.
func findImage(s state.State, id string) (models.ImageResult, error) {
	for _, img := range s.Generation.Results {
		if img.ID == id {
			return img, nil
		}
	}
	for _, img := range s.Editing.Results {
		if img.ID == id {
			return img, nil
		}
	}
	for _, entry := range s.Gallery {
		if entry.Image.ID == id {
			return entry.Image, nil
		}
	}
	return models.ImageResult{}, fmt.Errorf("%w: %s", errImageNotFound, id)
}

func modeForView(v models.View) models.Mode {
	if v == models.ViewEdit {
		return models.ModeEdit
	}
	return models.ModeGeneration
}

func parseMode(s string) (models.Mode, bool) {
	switch strings.ToLower(s) {
	case "generation", "generate", "gen":
		return models.ModeGeneration, true
	case "edit", "editing":
		return models.ModeEdit, true
	}
	return "", false
}

// truncate shortens s to maxLen runes, ending in "...".
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
