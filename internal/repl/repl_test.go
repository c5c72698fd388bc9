package repl

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/manash/azimg/internal/display"
	"github.com/manash/azimg/internal/gallery"
	"github.com/manash/azimg/internal/image"
	"github.com/manash/azimg/internal/provider"
	"github.com/manash/azimg/internal/state"
	"github.com/manash/azimg/internal/studio"
	"github.com/manash/azimg/pkg/models"
)

var (
	pngData  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	jpegData = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	gifData  = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00")
)

type mockProvider struct {
	generateFunc func(ctx context.Context, req *models.GenerateRequest) (*models.Response, error)
	editReqs     []*models.EditRequest
	calls        int
}

func (m *mockProvider) Generate(ctx context.Context, req *models.GenerateRequest) (*models.Response, error) {
	m.calls++
	if m.generateFunc != nil {
		return m.generateFunc(ctx, req)
	}
	return response(1700000000), nil
}

func (m *mockProvider) Edit(_ context.Context, req *models.EditRequest) (*models.Response, error) {
	m.calls++
	m.editReqs = append(m.editReqs, req)
	return response(1700000001), nil
}

type mockCosts struct {
	summary *gallery.CostSummary
}

func (m *mockCosts) TotalCost(context.Context) (*gallery.CostSummary, error) {
	return m.summary, nil
}

func response(created int64) *models.Response {
	b64 := base64.StdEncoding.EncodeToString(pngData)
	return &models.Response{
		Created: created,
		Images:  []models.ImageResult{models.NewImageResult(created, 0, b64, "a fox, photorealistic")},
	}
}

func configured() models.Configuration {
	return models.Configuration{
		Endpoint:       "https://res.openai.azure.com",
		APIKey:         "secret-key-123456",
		DeploymentName: "gpt-image-1",
		APIVersion:     "2025-04-01-preview",
	}
}

type harness struct {
	repl     *REPL
	out      *bytes.Buffer
	errOut   *bytes.Buffer
	provider *mockProvider
	dir      string
}

func (h *harness) run(t *testing.T, input string) {
	t.Helper()
	h.repl.in = strings.NewReader(input)
	if err := h.repl.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func (h *harness) state() state.State {
	return h.repl.state().Snapshot()
}

func testREPL(t *testing.T, cfg models.Configuration) *harness {
	t.Helper()
	initial := state.Initial()
	initial.Config = cfg

	p := &mockProvider{}
	factory := func(*provider.Config) (provider.Provider, error) { return p, nil }

	dir := t.TempDir()
	out := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}

	r := New(&Config{
		In:     strings.NewReader(""),
		Out:    out,
		Err:    errBuf,
		Studio: studio.New(state.New(initial), factory),
		Saver:  image.NewSaver(dir),
	})
	return &harness{repl: r, out: out, errOut: errBuf, provider: p, dir: dir}
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestNew(t *testing.T) {
	h := testREPL(t, configured())

	if h.repl == nil {
		t.Fatal("New() returned nil")
	}
	if len(h.repl.commands) == 0 {
		t.Error("New() commands not registered")
	}
}

func TestREPL_CommandsRegistered(t *testing.T) {
	h := testREPL(t, configured())

	expectedCommands := []string{
		"generate", "gen", "g",
		"edit", "e",
		"image", "img",
		"mask",
		"params", "p",
		"config", "cfg",
		"results", "r",
		"gallery", "gal",
		"save", "s",
		"show", "display",
		"revised", "rev",
		"view", "v",
		"cost", "$",
		"help", "?",
		"quit", "exit", "q",
	}

	for _, cmd := range expectedCommands {
		if _, ok := h.repl.commands[cmd]; !ok {
			t.Errorf("Command %q not registered", cmd)
		}
	}
}

func TestREPL_Run_Quit(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "quit\n")

	if !strings.Contains(h.out.String(), "Goodbye!") {
		t.Error("Run() quit command did not output 'Goodbye!'")
	}
}

func TestREPL_Run_Help(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "help\nquit\n")

	output := h.out.String()
	if !strings.Contains(output, "Available commands") {
		t.Error("Run() help did not show available commands")
	}
	for _, name := range []string{"generate", "mask", "revised"} {
		if !strings.Contains(output, name) {
			t.Errorf("Run() help did not list %s command", name)
		}
	}
}

func TestREPL_Run_UnknownCommand(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "unknowncommand\nquit\n")

	if !strings.Contains(h.errOut.String(), "unknown command: unknowncommand") {
		t.Errorf("error output = %q", h.errOut.String())
	}
}

func TestREPL_Run_EmptyLine(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "\n\n\nquit\n")

	if h.errOut.Len() != 0 {
		t.Errorf("unexpected error output %q", h.errOut.String())
	}
}

func TestREPL_WelcomeUnconfigured(t *testing.T) {
	h := testREPL(t, models.DefaultConfiguration())
	h.run(t, "quit\n")

	if !strings.Contains(h.out.String(), "not configured yet") {
		t.Errorf("welcome did not mention missing configuration: %q", h.out.String())
	}
	if !strings.Contains(h.out.String(), "azimg [generate]> ") {
		t.Error("prompt does not show the active view")
	}
}

func TestREPL_Stop(t *testing.T) {
	h := testREPL(t, configured())

	h.repl.running = true
	h.repl.Stop()

	if h.repl.running {
		t.Error("Stop() did not stop the REPL")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "simple command",
			input: "generate hello",
			want:  []string{"generate", "hello"},
		},
		{
			name:  "double quotes",
			input: `generate "hello world"`,
			want:  []string{"generate", "hello world"},
		},
		{
			name:  "single quotes",
			input: `image add 'my photo.png'`,
			want:  []string{"image", "add", "my photo.png"},
		},
		{
			name:  "key value pairs",
			input: "params edit n=2 fidelity=low",
			want:  []string{"params", "edit", "n=2", "fidelity=low"},
		},
		{
			name:  "apostrophe inside double quotes",
			input: `generate "a cat's hat"`,
			want:  []string{"generate", "a cat's hat"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "whitespace only",
			input: "   ",
			want:  nil,
		},
		{
			name:  "multiple spaces",
			input: "generate    test    prompt",
			want:  []string{"generate", "test", "prompt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCommand(tt.input)
			if len(got) != len(tt.want) {
				t.Errorf("parseCommand() = %v, want %v", got, tt.want)
				return
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseCommand()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world", 8, "hello..."},
		{"multi-byte runes", "日落时分的山脉与湖泊", 7, "日落时分..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateCommand_NotConfigured(t *testing.T) {
	h := testREPL(t, models.DefaultConfiguration())
	h.run(t, "generate a cat\nquit\n")

	if h.provider.calls != 0 {
		t.Errorf("provider called %d times without configuration", h.provider.calls)
	}
	if got := h.state().Generation.Error; got != models.ErrConfigIncomplete.Error() {
		t.Errorf("generation error = %q", got)
	}
	if !strings.Contains(h.errOut.String(), "please configure the Azure OpenAI service first") {
		t.Errorf("error output = %q", h.errOut.String())
	}
}

func TestGenerateCommand_EmptyPrompt(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "generate\nquit\n")

	if h.provider.calls != 0 {
		t.Error("provider called for an empty prompt")
	}
	if got := h.state().Generation.Error; got != "please enter a prompt" {
		t.Errorf("generation error = %q", got)
	}
}

func TestGenerateCommand_ResultWithoutData(t *testing.T) {
	h := testREPL(t, configured())
	h.provider.generateFunc = func(context.Context, *models.GenerateRequest) (*models.Response, error) {
		return &models.Response{
			Created: 1700000000,
			Images:  []models.ImageResult{models.NewImageResult(1700000000, 0, "", "")},
		}, nil
	}
	h.run(t, "generate a fox\nquit\n")

	if !strings.Contains(h.out.String(), "1700000000_0 (no image data)") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestGenerateCommand_Success(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "view gallery\ngenerate a red fox\nquit\n")

	output := h.out.String()
	if !strings.Contains(output, "1700000000_0") {
		t.Errorf("output missing image id: %q", output)
	}
	if !strings.Contains(output, "Revised prompt: a fox, photorealistic") {
		t.Errorf("output missing revised prompt: %q", output)
	}

	s := h.state()
	if s.ActiveView != models.ViewGenerate {
		t.Errorf("ActiveView = %s, want generate", s.ActiveView)
	}
	if len(s.Generation.Results) != 1 || len(s.Gallery) != 1 {
		t.Errorf("results = %d, gallery = %d", len(s.Generation.Results), len(s.Gallery))
	}
	if s.Gallery[0].Prompt != "a red fox" {
		t.Errorf("gallery prompt = %q", s.Gallery[0].Prompt)
	}
}

func TestGenerateCommand_Display(t *testing.T) {
	h := testREPL(t, configured())
	h.repl.displayer = display.New(h.out, 0)
	h.run(t, "generate a red fox\nquit\n")

	if !strings.Contains(h.out.String(), "\x1b_G") {
		t.Error("generated image was not previewed")
	}
}

func TestGenerateCommand_ProviderError(t *testing.T) {
	h := testREPL(t, configured())
	h.provider.generateFunc = func(context.Context, *models.GenerateRequest) (*models.Response, error) {
		return nil, errors.New("HTTP Error 401: Unauthorized")
	}
	h.run(t, "generate a red fox\nresults\nquit\n")

	if got := h.state().Generation.Error; got != "HTTP Error 401: Unauthorized" {
		t.Errorf("generation error = %q", got)
	}
	if !strings.Contains(h.out.String(), "generation error: HTTP Error 401: Unauthorized") {
		t.Errorf("results did not show the error: %q", h.out.String())
	}
}

func TestEditCommand_NoImages(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "edit make it blue\nquit\n")

	if h.provider.calls != 0 {
		t.Error("provider called without source images")
	}
	if got := h.state().Editing.Error; got != "please upload at least one image" {
		t.Errorf("edit error = %q", got)
	}
	if h.state().ActiveView != models.ViewEdit {
		t.Error("edit did not switch to the edit view")
	}
}

func TestEditCommand_Success(t *testing.T) {
	h := testREPL(t, configured())
	src := writeFile(t, t.TempDir(), "photo.png", pngData)
	mask := writeFile(t, t.TempDir(), "mask.png", pngData)

	h.run(t, "image add "+src+"\nmask set "+mask+"\nedit make it blue\nquit\n")

	if len(h.provider.editReqs) != 1 {
		t.Fatalf("edit requests = %d, want 1", len(h.provider.editReqs))
	}
	req := h.provider.editReqs[0]
	if len(req.Images) != 1 || req.Images[0].Name != "photo.png" {
		t.Errorf("edit images = %+v", req.Images)
	}
	if req.Mask == nil || req.Mask.Name != "mask.png" {
		t.Errorf("edit mask = %+v", req.Mask)
	}
	if len(h.state().Editing.Results) != 1 {
		t.Error("edit results not stored")
	}
	if !strings.Contains(h.out.String(), "and a mask") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestImageCommand_AddListRemove(t *testing.T) {
	h := testREPL(t, configured())
	dir := t.TempDir()
	a := writeFile(t, dir, "a.png", pngData)
	b := writeFile(t, dir, "b.jpg", jpegData)

	h.run(t, "image add "+a+" "+b+"\nimage rm 1\nimage list\nimage clear\nimage\nquit\n")

	output := h.out.String()
	if !strings.Contains(output, "Added 2 image(s)") {
		t.Errorf("output missing add confirmation: %q", output)
	}
	if !strings.Contains(output, "[1] b.jpg (image/jpeg") {
		t.Errorf("remaining image not renumbered: %q", output)
	}
	if !strings.Contains(output, "No source images") {
		t.Errorf("clear did not empty the list: %q", output)
	}
}

func TestImageCommand_RejectsUnsupported(t *testing.T) {
	h := testREPL(t, configured())
	dir := t.TempDir()
	good := writeFile(t, dir, "good.png", pngData)
	bad := writeFile(t, dir, "anim.gif", gifData)

	h.run(t, "image add "+good+" "+bad+"\nquit\n")

	if !strings.Contains(h.out.String(), "Added 1 image(s)") {
		t.Errorf("output = %q", h.out.String())
	}
	if !strings.Contains(h.errOut.String(), "only png and jpeg images are supported") {
		t.Errorf("error output = %q", h.errOut.String())
	}
	if h.state().Editing.Error == "" {
		t.Error("rejection not recorded in the edit error slot")
	}
}

func TestImageCommand_BadIndex(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "image rm x\nimage rm 3\nquit\n")

	if !strings.Contains(h.errOut.String(), `invalid image number "x"`) {
		t.Errorf("error output = %q", h.errOut.String())
	}
	if !strings.Contains(h.errOut.String(), "no image at index 2") {
		t.Errorf("error output = %q", h.errOut.String())
	}
}

func TestMaskCommand_RejectsJPEG(t *testing.T) {
	h := testREPL(t, configured())
	mask := writeFile(t, t.TempDir(), "mask.jpg", jpegData)

	h.run(t, "mask set "+mask+"\nmask clear\nquit\n")

	if !strings.Contains(h.errOut.String(), "mask file must be a png image") {
		t.Errorf("error output = %q", h.errOut.String())
	}
	if !strings.Contains(h.out.String(), "Mask cleared") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestParamsCommand(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "params generation n=3 size=landscape\nparams edit fidelity=low quality=low\nparams n=42\nquit\n")

	s := h.state()
	if s.Generation.Params.N != 3 || s.Generation.Params.Size != models.SizeLandscape {
		t.Errorf("generation params = %+v", s.Generation.Params)
	}
	if s.Editing.Params.InputFidelity != models.FidelityLow || s.Editing.Params.Quality != models.QualityLow {
		t.Errorf("edit params = %+v", s.Editing.Params)
	}
	if s.Editing.Params.N != 1 {
		t.Error("generation change leaked into edit params")
	}
	if s.Generation.Params.N != 3 {
		t.Error("invalid value changed the parameters")
	}
	if !strings.Contains(h.errOut.String(), "invalid parameters") {
		t.Errorf("error output = %q", h.errOut.String())
	}
	if !strings.Contains(h.out.String(), "input_fidelity:     low") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestParamsCommand_FollowsActiveView(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "view edit\nparams n=2\nquit\n")

	s := h.state()
	if s.Editing.Params.N != 2 || s.Generation.Params.N != 1 {
		t.Errorf("edit n = %d, generation n = %d", s.Editing.Params.N, s.Generation.Params.N)
	}
}

func TestParamsCommand_MalformedPair(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "params quality\nquit\n")

	if !strings.Contains(h.errOut.String(), `expected key=value, got "quality"`) {
		t.Errorf("error output = %q", h.errOut.String())
	}
}

func TestConfigCommand(t *testing.T) {
	h := testREPL(t, models.DefaultConfiguration())
	h.run(t, "config\nconfig endpoint=https://res.openai.azure.com key=abcdefgh12345678\nquit\n")

	cfg := h.state().Config
	if cfg.Endpoint != "https://res.openai.azure.com" || cfg.APIKey != "abcdefgh12345678" {
		t.Errorf("config = %+v", cfg)
	}
	output := h.out.String()
	if !strings.Contains(output, "(not set)") {
		t.Errorf("initial config not shown: %q", output)
	}
	if !strings.Contains(output, "abcd********5678") {
		t.Errorf("API key not masked: %q", output)
	}
	if strings.Contains(output, "abcdefgh12345678") {
		t.Error("API key printed in clear")
	}
	if !strings.Contains(output, "status:      ready") {
		t.Errorf("config not reported ready: %q", output)
	}
}

func TestConfigCommand_InvalidEndpoint(t *testing.T) {
	h := testREPL(t, models.DefaultConfiguration())
	h.run(t, "config endpoint=ftp://res.openai.azure.com\nconfig region=westus\nquit\n")

	if h.state().Config.Endpoint != "" {
		t.Error("invalid endpoint was stored")
	}
	errOut := h.errOut.String()
	if !strings.Contains(errOut, "invalid endpoint") {
		t.Errorf("error output = %q", errOut)
	}
	if !strings.Contains(errOut, "unknown parameter") {
		t.Errorf("error output = %q", errOut)
	}
}

func TestSaveCommand(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "generate fox\nsave 1700000000_0\nsave 1700000000_0 foxes/fox.png\nquit\n")

	for _, name := range []string{"generated-image-1700000000_0.png", filepath.Join("foxes", "fox.png")} {
		data, err := os.ReadFile(filepath.Join(h.dir, name))
		if err != nil {
			t.Errorf("%s not written: %v", name, err)
			continue
		}
		if !bytes.Equal(data, pngData) {
			t.Errorf("%s content mismatch", name)
		}
	}
}

func TestSaveCommand_Errors(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "save\nsave missing\ngenerate fox\nsave 1700000000_0 ../escape.png\nquit\n")

	errOut := h.errOut.String()
	if !strings.Contains(errOut, "usage: save <id> [filename]") {
		t.Errorf("error output = %q", errOut)
	}
	if !strings.Contains(errOut, "image not found: missing") {
		t.Errorf("error output = %q", errOut)
	}
	if !strings.Contains(errOut, "path traversal detected") {
		t.Errorf("error output = %q", errOut)
	}
}

func TestShowCommand_NoDisplay(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "show 1700000000_0\nquit\n")

	if !strings.Contains(h.errOut.String(), "inline preview is not supported") {
		t.Errorf("error output = %q", h.errOut.String())
	}
}

func TestRevisedCommand(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "generate fox\nrevised 1700000000_0\nquit\n")

	if !strings.Contains(h.out.String(), "a fox, photorealistic\n") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestViewCommand(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "view edit\nview settings\nquit\n")

	if h.state().ActiveView != models.ViewEdit {
		t.Errorf("ActiveView = %s", h.state().ActiveView)
	}
	if !strings.Contains(h.errOut.String(), "invalid view: settings") {
		t.Errorf("error output = %q", h.errOut.String())
	}
	if !strings.Contains(h.out.String(), "azimg [edit]> ") {
		t.Error("prompt did not follow the active view")
	}
}

func TestResultsCommand(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "results\ngenerate fox\nresults generation\nresults clear\nquit\n")

	output := h.out.String()
	if !strings.Contains(output, "No generation results yet") {
		t.Errorf("output = %q", output)
	}
	if !strings.Contains(output, "generation results cleared") {
		t.Errorf("output = %q", output)
	}
	s := h.state()
	if len(s.Generation.Results) != 0 {
		t.Error("results not cleared")
	}
	if len(s.Gallery) != 1 {
		t.Error("clearing results must keep the gallery")
	}
}

func TestGalleryCommand(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "gallery\ngenerate fox\ngenerate owl\ngallery\ngallery save 1700000000_0 g.png\ngallery clear\nquit\n")

	output := h.out.String()
	if !strings.Contains(output, "Gallery is empty") {
		t.Errorf("output = %q", output)
	}
	if !strings.Contains(output, `[2] 1700000000_0`) || !strings.Contains(output, `"owl"`) {
		t.Errorf("gallery listing = %q", output)
	}
	if _, err := os.Stat(filepath.Join(h.dir, "g.png")); err != nil {
		t.Errorf("gallery save failed: %v", err)
	}
	s := h.state()
	if len(s.Gallery) != 0 {
		t.Error("gallery not cleared")
	}
	if s.ActiveView != models.ViewGallery {
		t.Errorf("ActiveView = %s", s.ActiveView)
	}
}

func TestCostCommand(t *testing.T) {
	h := testREPL(t, configured())
	h.run(t, "cost\nquit\n")

	if !strings.Contains(h.out.String(), "Next generation: $0.167 (USD)") {
		t.Errorf("output = %q", h.out.String())
	}

	h = testREPL(t, configured())
	h.repl.costs = &mockCosts{summary: &gallery.CostSummary{TotalCost: 0.5, ImageCount: 3, EntryCount: 2}}
	h.run(t, "cost\nquit\n")

	if !strings.Contains(h.out.String(), "Total cost: $0.5000 (3 image(s))") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestCommand_Interface(t *testing.T) {
	for _, cmd := range allCommands() {
		t.Run(cmd.Name(), func(t *testing.T) {
			if cmd.Name() == "" {
				t.Error("Name() returned empty string")
			}
			if cmd.Description() == "" {
				t.Error("Description() returned empty string")
			}
			if cmd.Usage() == "" {
				t.Error("Usage() returned empty string")
			}
		})
	}
}
