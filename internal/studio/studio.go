// Package studio runs generation and edit submissions against the state
// container: validation, the single request, and the resulting transitions.
package studio

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/manash/azimg/internal/cost"
	"github.com/manash/azimg/internal/gallery"
	"github.com/manash/azimg/internal/provider"
	"github.com/manash/azimg/internal/state"
	"github.com/manash/azimg/pkg/models"
)

// CostLog records the estimated charge of each successful submission.
type CostLog interface {
	LogCost(ctx context.Context, entry *gallery.CostEntry) error
}

type Studio struct {
	container   *state.Container
	newProvider provider.Factory
	inputs      inputs
	calc        *cost.Calculator
	costs       CostLog
	now         func() time.Time
	timeoutSec  int
	logger      *slog.Logger
}

type Option func(*Studio)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Studio) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Studio) {
		s.now = now
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Studio) {
		s.timeoutSec = int(d / time.Second)
	}
}

func WithCostLog(costs CostLog) Option {
	return func(s *Studio) {
		s.costs = costs
	}
}

func New(container *state.Container, newProvider provider.Factory, opts ...Option) *Studio {
	s := &Studio{
		container:   container,
		newProvider: newProvider,
		calc:        cost.NewCalculator(),
		now:         time.Now,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Studio) State() *state.Container {
	return s.container
}

// Estimate prices the next submission of mode with its current parameters.
func (s *Studio) Estimate(mode models.Mode) cost.Estimate {
	snap := s.container.Snapshot()
	if mode == models.ModeEdit {
		return s.calc.Estimate(snap.Editing.Params.GenerationParameters)
	}
	return s.calc.Estimate(snap.Generation.Params)
}

type submission interface {
	validate() error
	validateParams() error
	send(ctx context.Context, p provider.Provider) (*models.Response, error)
	params() models.GenerationParameters
}

type generateSubmission struct {
	req *models.GenerateRequest
}

func (g generateSubmission) validate() error {
	return g.req.Validate()
}

func (g generateSubmission) validateParams() error {
	return g.req.Params.Validate()
}

func (g generateSubmission) send(ctx context.Context, p provider.Provider) (*models.Response, error) {
	return p.Generate(ctx, g.req)
}

func (g generateSubmission) params() models.GenerationParameters {
	return g.req.Params
}

type editSubmission struct {
	req *models.EditRequest
}

func (e editSubmission) validate() error {
	return e.req.Validate()
}

func (e editSubmission) validateParams() error {
	return e.req.Params.Validate()
}

func (e editSubmission) send(ctx context.Context, p provider.Provider) (*models.Response, error) {
	return p.Edit(ctx, e.req)
}

func (e editSubmission) params() models.GenerationParameters {
	return e.req.Params.GenerationParameters
}

// Generate submits prompt with the current generation parameters.
func (s *Studio) Generate(ctx context.Context, prompt string) ([]models.ImageResult, error) {
	return s.submit(ctx, models.ModeGeneration, prompt, func(snap state.State) submission {
		return generateSubmission{req: &models.GenerateRequest{
			Prompt: prompt,
			Params: snap.Generation.Params,
		}}
	})
}

// Edit submits prompt with the pending source images, the optional mask and
// the current edit parameters.
func (s *Studio) Edit(ctx context.Context, prompt string) ([]models.ImageResult, error) {
	images, mask := s.inputs.snapshot()
	return s.submit(ctx, models.ModeEdit, prompt, func(snap state.State) submission {
		return editSubmission{req: &models.EditRequest{
			Prompt: prompt,
			Images: images,
			Mask:   mask,
			Params: snap.Editing.Params,
		}}
	})
}

func (s *Studio) submit(ctx context.Context, mode models.Mode, prompt string, build func(state.State) submission) ([]models.ImageResult, error) {
	if err := s.container.BeginRequest(ctx, mode); err != nil {
		return nil, err
	}

	// Prompt and images are checked before the configuration, then the
	// parameters.
	snap := s.container.Snapshot()
	sub := build(snap)
	if err := sub.validate(); err != nil {
		return nil, s.fail(mode, err)
	}
	if err := snap.Config.Validate(); err != nil {
		return nil, s.fail(mode, err)
	}
	if err := sub.validateParams(); err != nil {
		return nil, s.fail(mode, err)
	}

	cfg := provider.ConfigFrom(snap.Config)
	cfg.TimeoutSec = s.timeoutSec
	cfg.Logger = s.logger
	p, err := s.newProvider(cfg)
	if err != nil {
		return nil, s.fail(mode, err)
	}

	start := s.now()
	resp, err := sub.send(ctx, p)
	if err != nil {
		s.logger.Debug("request duration", "mode", mode, "duration", s.now().Sub(start))
		return nil, s.fail(mode, err)
	}
	s.logger.Info("request completed", "mode", mode, "images", len(resp.Images), "duration", s.now().Sub(start))

	s.container.SetResults(mode, resp.Images)
	s.container.AddToGallery(models.NewGalleryEntries(resp.Images, mode, prompt, s.now()))
	s.logCost(ctx, mode, sub.params(), len(resp.Images))

	return resp.Images, nil
}

// fail stores err in the error slot of mode and returns it.
func (s *Studio) fail(mode models.Mode, err error) error {
	var se *provider.ServerError
	switch {
	case models.IsValidationError(err):
		s.logger.Debug("submission rejected", "mode", mode, "error", err)
	case errors.As(err, &se) && se.IsContentFiltered():
		s.logger.Warn("request blocked by content filter", "mode", mode, "status", se.Status)
	default:
		s.logger.Warn("request failed", "mode", mode, "error", err)
	}
	s.container.SetError(mode, err.Error())
	return err
}

func (s *Studio) logCost(ctx context.Context, mode models.Mode, params models.GenerationParameters, count int) {
	if s.costs == nil || count == 0 {
		return
	}
	params.N = count
	est := s.calc.Estimate(params)
	entry := &gallery.CostEntry{
		Mode:       mode,
		Model:      models.ImageModel,
		Cost:       est.Total,
		ImageCount: count,
		Timestamp:  s.now(),
	}
	if err := s.costs.LogCost(ctx, entry); err != nil {
		s.logger.Warn("failed to log cost", "error", err)
	}
}

// AddImages queues source images for the next edit. Files that are not png
// or jpeg, or exceed MaxImageSize, are skipped; the first rejection is
// reported in the edit error slot and returned.
func (s *Studio) AddImages(files ...models.InputFile) error {
	var (
		accepted []models.InputFile
		rejected error
	)
	for _, f := range files {
		if err := checkImage(f); err != nil {
			if rejected == nil {
				rejected = err
			}
			continue
		}
		accepted = append(accepted, f)
	}
	s.inputs.add(accepted)

	if rejected != nil {
		s.container.SetError(models.ModeEdit, rejected.Error())
	}
	return rejected
}

// SetMask sets the edit mask. Only png files are accepted; a rejected file
// leaves the current mask in place.
func (s *Studio) SetMask(f models.InputFile) error {
	if err := checkMask(f); err != nil {
		s.container.SetError(models.ModeEdit, err.Error())
		return err
	}
	s.inputs.setMask(&f)
	return nil
}

func (s *Studio) ClearMask() {
	s.inputs.setMask(nil)
}

func (s *Studio) RemoveImage(index int) error {
	return s.inputs.remove(index)
}

func (s *Studio) ClearImages() {
	s.inputs.clear()
}

// Inputs lists the pending source images and the mask, if any.
func (s *Studio) Inputs() ([]FileInfo, *FileInfo) {
	images, mask := s.inputs.snapshot()
	infos := make([]FileInfo, 0, len(images))
	for i, f := range images {
		infos = append(infos, describe(i, f))
	}
	if mask == nil {
		return infos, nil
	}
	m := describe(0, *mask)
	return infos, &m
}
