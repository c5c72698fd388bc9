package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/manash/azimg/internal/config"
	"github.com/manash/azimg/internal/configstore"
	"github.com/manash/azimg/internal/display"
	"github.com/manash/azimg/internal/gallery"
	"github.com/manash/azimg/internal/image"
	"github.com/manash/azimg/internal/provider"
	"github.com/manash/azimg/internal/provider/azure"
	"github.com/manash/azimg/internal/state"
	"github.com/manash/azimg/internal/studio"
)

var (
	version = "dev"
	commit  = "none"
)

var flagVerbose bool

type App struct {
	In           io.Reader
	Out          io.Writer
	Err          io.Writer
	Environ      func() []string
	DotEnvFiles  []string
	NewProvider  provider.Factory
	NewSaver     func(dir string) *image.Saver
	NewDisplayer func(out io.Writer, columns int) *display.Displayer
	IsTerminal   func() bool
	ReadPassword func() ([]byte, error)
}

func DefaultApp() *App {
	return &App{
		In:          os.Stdin,
		Out:         os.Stdout,
		Err:         os.Stderr,
		Environ:     os.Environ,
		DotEnvFiles: []string{config.DefaultDotEnvFile},
		NewProvider: func(cfg *provider.Config) (provider.Provider, error) {
			p, err := azure.New(cfg)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		NewSaver:     image.NewSaver,
		NewDisplayer: display.New,
		IsTerminal:   display.IsTerminalSupported,
		ReadPassword: func() ([]byte, error) {
			return term.ReadPassword(int(os.Stdin.Fd()))
		},
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app := DefaultApp()
	rootCmd := newRootCmd(app)
	return rootCmd.Execute()
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "azimg",
		Short: "Generate and edit images with an Azure OpenAI gpt-image-1 deployment",
		Long: `azimg generates and edits images through an Azure OpenAI image deployment.

Configure the service once, then generate or edit:
  azimg config set --endpoint https://my-resource.openai.azure.com --api-key -
  azimg generate "a lighthouse at dusk, oil painting"
  azimg edit --image photo.png --mask mask.png "replace the sky with aurora"
  azimg interactive

The connection settings can also come from AZURE_OPENAI_ENDPOINT,
AZURE_OPENAI_API_KEY, AZURE_OPENAI_DEPLOYMENT and AZURE_OPENAI_API_VERSION,
either in the environment or in a .env file.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetOut(app.Out)
	cmd.SetErr(app.Err)
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newGenerateCmd(app))
	cmd.AddCommand(newEditCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newGalleryCmd(app))
	cmd.AddCommand(newCostCmd(app))
	cmd.AddCommand(newBatchCmd(app))
	cmd.AddCommand(newInteractiveCmd(app))

	return cmd
}

// session is everything one command invocation works with: the settings,
// the persisted stores and the studio wired to them.
type session struct {
	settings *config.Settings
	logger   *slog.Logger
	store    *configstore.FileStore
	archive  *gallery.Archive
	studio   *studio.Studio
}

func (s *session) Close() error {
	return s.archive.Close()
}

func (s *session) state() *state.Container {
	return s.studio.State()
}

// openSession builds the initial state from the defaults, the saved
// configuration and the environment, in that order.
func (app *App) openSession(ctx context.Context) (*session, error) {
	settings, err := config.Load(app.Environ(), app.DotEnvFiles...)
	if err != nil {
		return nil, err
	}
	logger := app.newLogger(settings)

	store, err := configstore.NewFileStore()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}
	archive, err := gallery.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open gallery: %w", err)
	}

	initial := state.Initial()
	if saved, ok := configstore.Load(store, logger); ok {
		initial.Config = saved.Apply(initial.Config)
	}
	stored := initial.Config
	initial.Config = settings.Patch().Apply(initial.Config)

	container := state.New(initial,
		state.WithLogger(logger),
		state.WithConfigHook(configstore.Persist(store, stored)),
		state.WithGalleryHook(archive.Hook(ctx)),
	)
	st := studio.New(container, app.NewProvider,
		studio.WithLogger(logger),
		studio.WithTimeout(settings.Timeout()),
		studio.WithCostLog(archive),
	)

	logger.Debug("session opened", "config", store.Path(), "complete", initial.Config.IsComplete())

	return &session{
		settings: settings,
		logger:   logger,
		store:    store,
		archive:  archive,
		studio:   st,
	}, nil
}

func (app *App) newLogger(settings *config.Settings) *slog.Logger {
	level := settings.Level()
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(app.Err, &slog.HandlerOptions{Level: level}))
}

func (app *App) displayer() *display.Displayer {
	if app.IsTerminal == nil || !app.IsTerminal() {
		return nil
	}
	return app.NewDisplayer(app.Out, display.DefaultColumns)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
