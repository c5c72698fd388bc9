// Package display previews result images inline in terminals that speak
// the kitty graphics protocol.
package display

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/term"

	"github.com/manash/azimg/pkg/models"
)

// DefaultColumns is the preview width in terminal cells.
const DefaultColumns = 40

var ErrNotPNG = errors.New("inline preview supports png images only")

type Displayer struct {
	out     io.Writer
	columns int
}

func New(out io.Writer, columns int) *Displayer {
	return &Displayer{out: out, columns: columns}
}

// Display decodes img and writes it inline followed by a newline.
func (d *Displayer) Display(img models.ImageResult) error {
	data, err := img.Decode()
	if err != nil {
		return err
	}
	if !mimetype.Detect(data).Is("image/png") {
		return fmt.Errorf("image %s: %w", img.ID, ErrNotPNG)
	}

	enc := NewKittyEncoder(d.out, d.columns)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}

	fmt.Fprintln(d.out)
	return nil
}

func (d *Displayer) DisplayAll(images []models.ImageResult) error {
	for i, img := range images {
		if err := d.Display(img); err != nil {
			return fmt.Errorf("failed to display image %d: %w", i, err)
		}
	}
	return nil
}

// IsTerminalSupported reports whether stdout is a terminal known to render
// kitty graphics.
func IsTerminalSupported() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && SupportsKitty(os.Getenv)
}

// SupportsKitty inspects the terminal identification variables.
func SupportsKitty(getenv func(string) string) bool {
	termProgram := strings.ToLower(getenv("TERM_PROGRAM"))
	for _, prog := range []string{"kitty", "ghostty", "iterm.app", "wezterm"} {
		if termProgram == prog {
			return true
		}
	}

	if getenv("KITTY_WINDOW_ID") != "" || getenv("ITERM_SESSION_ID") != "" {
		return true
	}

	t := strings.ToLower(getenv("TERM"))
	return strings.Contains(t, "kitty") || strings.Contains(t, "ghostty")
}
