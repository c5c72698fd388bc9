package studio

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/manash/azimg/pkg/models"
)

// MaxImageSize is the largest source image accepted for editing.
const MaxImageSize = 50 * 1024 * 1024

const (
	mimePNG  = "image/png"
	mimeJPEG = "image/jpeg"
)

// ReadInputFile loads a file from disk and sniffs its content type.
func ReadInputFile(path string) (models.InputFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.InputFile{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return NewInputFile(filepath.Base(path), data), nil
}

// NewInputFile wraps data, taking the content type from the bytes rather
// than the name.
func NewInputFile(name string, data []byte) models.InputFile {
	return models.InputFile{
		Name:        name,
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}
}

func checkImage(f models.InputFile) error {
	mt := mimetype.Lookup(f.ContentType)
	if mt == nil || !(mt.Is(mimePNG) || mt.Is(mimeJPEG)) {
		return fmt.Errorf("%s: %w", f.Name, models.ErrUnsupportedImageType)
	}
	if f.Size() > MaxImageSize {
		return fmt.Errorf("%s: %w", f.Name, models.ErrImageTooLarge)
	}
	return nil
}

func checkMask(f models.InputFile) error {
	mt := mimetype.Lookup(f.ContentType)
	if mt == nil || !mt.Is(mimePNG) {
		return fmt.Errorf("%s: %w", f.Name, models.ErrMaskNotPNG)
	}
	if f.Size() > MaxImageSize {
		return fmt.Errorf("%s: %w", f.Name, models.ErrImageTooLarge)
	}
	return nil
}

// FileInfo describes a pending input for listings.
type FileInfo struct {
	Index       int
	Name        string
	ContentType string
	Size        string
}

func describe(i int, f models.InputFile) FileInfo {
	return FileInfo{
		Index:       i,
		Name:        f.Name,
		ContentType: f.ContentType,
		Size:        humanize.IBytes(uint64(f.Size())),
	}
}

// inputs holds the source images and optional mask of the edit view.
type inputs struct {
	mu     sync.Mutex
	images []models.InputFile
	mask   *models.InputFile
}

func (in *inputs) add(files []models.InputFile) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.images = append(in.images, files...)
}

func (in *inputs) remove(index int) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if index < 0 || index >= len(in.images) {
		return fmt.Errorf("no image at index %d", index)
	}
	in.images = slices.Delete(in.images, index, index+1)
	return nil
}

func (in *inputs) clear() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.images = nil
}

func (in *inputs) setMask(f *models.InputFile) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.mask = f
}

func (in *inputs) snapshot() ([]models.InputFile, *models.InputFile) {
	in.mu.Lock()
	defer in.mu.Unlock()
	images := slices.Clone(in.images)
	if in.mask == nil {
		return images, nil
	}
	mask := *in.mask
	return images, &mask
}
