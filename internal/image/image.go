// Package image writes result images to disk.
package image

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/manash/azimg/internal/security"
	"github.com/manash/azimg/pkg/models"
)

// Saver writes decoded images below a base directory.
type Saver struct {
	dir string
}

// NewSaver saves into dir; an empty dir means the working directory.
func NewSaver(dir string) *Saver {
	if dir == "" {
		dir = "."
	}
	return &Saver{dir: dir}
}

// Save decodes img and writes it to path, or to its default download name
// when path is empty. It returns the written path.
func (s *Saver) Save(img models.ImageResult, path string) (string, error) {
	data, err := img.Decode()
	if err != nil {
		return "", err
	}

	if path == "" {
		path = DownloadFilename(img.ID, data)
	}
	target, err := security.ResolveSavePath(s.dir, path)
	if err != nil {
		return "", fmt.Errorf("invalid output path %q: %w", path, err)
	}

	if err := ensureDir(target); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return target, nil
}

// SaveAll writes every image. With a base path, several images are numbered
// base-1.ext, base-2.ext; without one each gets its download name.
func (s *Saver) SaveAll(images []models.ImageResult, basePath string) ([]string, error) {
	paths := make([]string, 0, len(images))

	for i, img := range images {
		path, err := s.Save(img, numberedPath(basePath, i, len(images)))
		if err != nil {
			return paths, fmt.Errorf("failed to save image %d: %w", i+1, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// DownloadFilename is generated-image-{id} with the extension of the
// decoded content; png when the content is not recognised.
func DownloadFilename(id string, data []byte) string {
	ext := ".png"
	if mt := mimetype.Detect(data); mt.Is("image/jpeg") {
		ext = ".jpeg"
	}
	return fmt.Sprintf("generated-image-%s%s", security.SanitizeFilename(id), ext)
}

func numberedPath(basePath string, index, total int) string {
	if basePath == "" || total == 1 {
		return basePath
	}
	ext := filepath.Ext(basePath)
	base := basePath[:len(basePath)-len(ext)]
	return fmt.Sprintf("%s-%d%s", base, index+1, ext)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
