// Package batch runs a file of prompts through the generation flow, one
// submission at a time.
package batch

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/manash/azimg/internal/cost"
	"github.com/manash/azimg/internal/image"
	"github.com/manash/azimg/internal/security"
	"github.com/manash/azimg/pkg/models"
)

// Generator is the submission flow a batch drives.
type Generator interface {
	Generate(ctx context.Context, prompt string) ([]models.ImageResult, error)
	Estimate(mode models.Mode) cost.Estimate
}

type Result struct {
	Index    int
	Prompt   string
	Paths    []string
	Cost     float64
	Error    error
	Duration time.Duration
}

type Options struct {
	Format      models.OutputFormat
	StopOnError bool
	DelayMs     int
}

type Processor struct {
	gen   Generator
	saver *image.Saver
	out   io.Writer
	err   io.Writer
}

func NewProcessor(gen Generator, saver *image.Saver, out, errOut io.Writer) *Processor {
	return &Processor{
		gen:   gen,
		saver: saver,
		out:   out,
		err:   errOut,
	}
}

// Process submits items in order. Requests for the same mode never overlap,
// so there is no parallel mode.
func (p *Processor) Process(ctx context.Context, items []Item, opts *Options) ([]Result, error) {
	results := make([]Result, 0, len(items))
	total := len(items)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result := p.processItem(ctx, item, opts, i+1, total)
		results = append(results, result)

		if result.Error != nil && opts.StopOnError {
			return results, fmt.Errorf("stopped at item %d: %w", i+1, result.Error)
		}

		if opts.DelayMs > 0 && i < len(items)-1 {
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(time.Duration(opts.DelayMs) * time.Millisecond):
			}
		}
	}
	return results, nil
}

func (p *Processor) processItem(ctx context.Context, item Item, opts *Options, current, total int) Result {
	start := time.Now()
	result := Result{
		Index:  item.Index,
		Prompt: item.Prompt,
	}

	fmt.Fprintf(p.out, "[%d/%d] Generating: %q...\n", current, total, truncate(item.Prompt, 50))

	images, err := p.gen.Generate(ctx, item.Prompt)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		fmt.Fprintf(p.err, "       Error: %v\n", err)
		return result
	}

	paths, err := p.saver.SaveAll(images, outputName(item, opts.Format))
	result.Paths = paths
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Errorf("save failed: %w", err)
		fmt.Fprintf(p.err, "       Error: %v\n", result.Error)
		return result
	}

	result.Cost = p.gen.Estimate(models.ModeGeneration).PerImage * float64(len(images))
	for _, path := range paths {
		fmt.Fprintf(p.out, "       Saved: %s\n", path)
	}
	return result
}

func outputName(item Item, format models.OutputFormat) string {
	if item.Name != "" {
		return security.SanitizeFilename(item.Name)
	}
	return generateFilename(item.Index, item.Prompt, format)
}

func generateFilename(index int, prompt string, format models.OutputFormat) string {
	return fmt.Sprintf("%03d-%s.%s", index, sanitizePrompt(prompt), format)
}

var unsafePromptChars = regexp.MustCompile(`[^a-zA-Z0-9\s-]`)

func sanitizePrompt(prompt string) string {
	sanitized := unsafePromptChars.ReplaceAllString(prompt, "")
	sanitized = strings.ToLower(sanitized)
	sanitized = strings.Join(strings.Fields(sanitized), "-")
	sanitized = strings.TrimLeft(sanitized, "-")

	if len(sanitized) > 50 {
		sanitized = sanitized[:50]
	}
	sanitized = strings.TrimSuffix(sanitized, "-")

	if sanitized == "" {
		return "image"
	}
	return security.SanitizeFilename(sanitized)
}

// truncate shortens s to maxLen runes, ending in "...".
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

func (p *Processor) PrintSummary(results []Result) {
	var (
		successful, failed int
		totalCost          float64
		failures           []Result
	)

	for _, r := range results {
		if r.Error != nil {
			failed++
			failures = append(failures, r)
		} else {
			successful++
			totalCost += r.Cost
		}
	}

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "Summary:")
	fmt.Fprintf(p.out, "  Successful: %d/%d prompts\n", successful, len(results))
	if failed > 0 {
		fmt.Fprintf(p.out, "  Failed: %d (see errors below)\n", failed)
	}
	fmt.Fprintf(p.out, "  Estimated cost: $%.4f\n", totalCost)

	if len(failures) > 0 {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, "Errors:")
		for _, e := range failures {
			fmt.Fprintf(p.out, "  [%d] %q: %v\n", e.Index, truncate(e.Prompt, 40), e.Error)
		}
	}
}
