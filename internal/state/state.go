// Package state holds the application state tree and the only transitions
// allowed to change it.
package state

import (
	"slices"

	"github.com/manash/azimg/pkg/models"
)

// RequestSlice is the request/result/error/loading slice of one mode.
// Loading and Error are never both set after a transition.
type RequestSlice struct {
	Loading bool
	Error   string
	Results []models.ImageResult
}

type GenerationSlice struct {
	Params models.GenerationParameters
	RequestSlice
}

type EditSlice struct {
	Params models.EditParameters
	RequestSlice
}

type State struct {
	Config     models.Configuration
	ActiveView models.View
	Generation GenerationSlice
	Editing    EditSlice
	Gallery    []models.GalleryEntry
}

func Initial() State {
	return State{
		Config:     models.DefaultConfiguration(),
		ActiveView: models.ViewGenerate,
		Generation: GenerationSlice{Params: models.DefaultGenerationParameters()},
		Editing:    EditSlice{Params: models.DefaultEditParameters()},
	}
}

// Slice returns the request slice of the given mode.
func (s State) Slice(mode models.Mode) RequestSlice {
	if mode == models.ModeEdit {
		return s.Editing.RequestSlice
	}
	return s.Generation.RequestSlice
}

// Clone returns a copy that shares no slices with s.
func (s State) Clone() State {
	s.Generation.Results = slices.Clone(s.Generation.Results)
	s.Editing.Results = slices.Clone(s.Editing.Results)
	s.Gallery = slices.Clone(s.Gallery)
	return s
}

type Action interface {
	apply(State) State
}

// Reduce returns the state after action. The input is never modified.
func Reduce(s State, action Action) State {
	return action.apply(s.Clone())
}

type SetConfig struct {
	Patch models.ConfigPatch
}

func (a SetConfig) apply(s State) State {
	s.Config = a.Patch.Apply(s.Config)
	return s
}

type SetParams struct {
	Mode  models.Mode
	Patch models.ParamsPatch
}

func (a SetParams) apply(s State) State {
	switch a.Mode {
	case models.ModeGeneration:
		s.Generation.Params = a.Patch.ApplyGeneration(s.Generation.Params)
	case models.ModeEdit:
		s.Editing.Params = a.Patch.ApplyEdit(s.Editing.Params)
	}
	return s
}

type SetLoading struct {
	Mode    models.Mode
	Loading bool
}

func (a SetLoading) apply(s State) State {
	return updateSlice(s, a.Mode, func(r *RequestSlice) {
		r.Loading = a.Loading
		if a.Loading {
			r.Error = ""
		}
	})
}

type SetResults struct {
	Mode    models.Mode
	Results []models.ImageResult
}

func (a SetResults) apply(s State) State {
	return updateSlice(s, a.Mode, func(r *RequestSlice) {
		r.Results = slices.Clone(a.Results)
		r.Loading = false
		r.Error = ""
	})
}

type SetError struct {
	Mode    models.Mode
	Message string
}

func (a SetError) apply(s State) State {
	return updateSlice(s, a.Mode, func(r *RequestSlice) {
		r.Error = a.Message
		r.Loading = false
	})
}

// AddToGallery appends entries; existing entries are never touched.
type AddToGallery struct {
	Entries []models.GalleryEntry
}

func (a AddToGallery) apply(s State) State {
	s.Gallery = append(s.Gallery, a.Entries...)
	return s
}

type ClearGallery struct{}

func (ClearGallery) apply(s State) State {
	s.Gallery = nil
	return s
}

type SetActiveView struct {
	View models.View
}

func (a SetActiveView) apply(s State) State {
	if a.View.IsValid() {
		s.ActiveView = a.View
	}
	return s
}

func updateSlice(s State, mode models.Mode, fn func(*RequestSlice)) State {
	switch mode {
	case models.ModeGeneration:
		fn(&s.Generation.RequestSlice)
	case models.ModeEdit:
		fn(&s.Editing.RequestSlice)
	}
	return s
}
