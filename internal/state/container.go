package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/manash/azimg/pkg/models"
)

var ErrRequestInFlight = errors.New("a request is already in progress for this mode")

// ConfigHook runs after every configuration transition with the resulting
// configuration and the patch that produced it.
type ConfigHook func(cfg models.Configuration, patch models.ConfigPatch) error

// GalleryHook runs after every gallery append with the appended entries.
type GalleryHook func(entries []models.GalleryEntry) error

// Container owns the state tree. All changes go through its named
// transitions; readers get deep copies.
type Container struct {
	mu           sync.Mutex
	state        State
	configHooks  []ConfigHook
	galleryHooks []GalleryHook
	logger       *slog.Logger
}

type Option func(*Container)

func WithConfigHook(hook ConfigHook) Option {
	return func(c *Container) {
		c.configHooks = append(c.configHooks, hook)
	}
}

func WithGalleryHook(hook GalleryHook) Option {
	return func(c *Container) {
		c.galleryHooks = append(c.galleryHooks, hook)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

func New(initial State, opts ...Option) *Container {
	c := &Container{
		state:  initial.Clone(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Container) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

func (c *Container) Config() models.Configuration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Config
}

func (c *Container) dispatch(action Action) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Reduce(c.state, action)
	return c.state.Clone()
}

func (c *Container) SetConfig(patch models.ConfigPatch) {
	s := c.dispatch(SetConfig{Patch: patch})
	for _, hook := range c.configHooks {
		if err := hook(s.Config, patch); err != nil {
			c.logger.Warn("config hook failed", "error", err)
		}
	}
}

func (c *Container) SetParams(mode models.Mode, patch models.ParamsPatch) {
	c.dispatch(SetParams{Mode: mode, Patch: patch})
}

func (c *Container) SetLoading(mode models.Mode, loading bool) {
	c.dispatch(SetLoading{Mode: mode, Loading: loading})
}

func (c *Container) SetResults(mode models.Mode, results []models.ImageResult) {
	c.dispatch(SetResults{Mode: mode, Results: results})
}

func (c *Container) SetError(mode models.Mode, message string) {
	c.dispatch(SetError{Mode: mode, Message: message})
}

func (c *Container) AddToGallery(entries []models.GalleryEntry) {
	if len(entries) == 0 {
		return
	}
	c.dispatch(AddToGallery{Entries: entries})
	for _, hook := range c.galleryHooks {
		if err := hook(entries); err != nil {
			c.logger.Warn("gallery hook failed", "error", err, "entries", len(entries))
		}
	}
}

func (c *Container) ClearGallery() {
	c.dispatch(ClearGallery{})
}

func (c *Container) SetActiveView(view models.View) error {
	if !view.IsValid() {
		return models.ErrInvalidView
	}
	c.dispatch(SetActiveView{View: view})
	return nil
}

// BeginRequest marks mode as loading unless a request is already in flight
// for it. It is the only way a submission starts.
func (c *Container) BeginRequest(ctx context.Context, mode models.Mode) error {
	if !mode.IsValid() {
		return models.ErrInvalidMode
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Slice(mode).Loading {
		c.logger.DebugContext(ctx, "submission rejected", "mode", mode)
		return ErrRequestInFlight
	}
	c.state = Reduce(c.state, SetLoading{Mode: mode, Loading: true})
	return nil
}
