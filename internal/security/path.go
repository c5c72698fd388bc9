// Package security holds the checks applied to user-supplied file names and
// service endpoints.
package security

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrAbsolutePath  = errors.New("absolute paths are not allowed")
	ErrReservedName  = errors.New("reserved filename not allowed")
	ErrLeadingHyphen = errors.New("filename cannot start with hyphen")

	windowsReservedNames = map[string]bool{
		"con": true, "prn": true, "aux": true, "nul": true,
		"com1": true, "com2": true, "com3": true, "com4": true,
		"com5": true, "com6": true, "com7": true, "com8": true, "com9": true,
		"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
		"lpt5": true, "lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
	}
)

// ValidateSavePath accepts relative paths that stay below the working
// directory and do not use a reserved device name.
func ValidateSavePath(path string) error {
	if filepath.IsAbs(path) {
		return ErrAbsolutePath
	}

	cleaned := filepath.Clean(path)
	if strings.HasPrefix(cleaned, "..") || strings.Contains(path, "..") {
		return ErrPathTraversal
	}

	base := filepath.Base(cleaned)
	if isReserved(base) {
		return ErrReservedName
	}
	if strings.HasPrefix(base, "-") {
		return ErrLeadingHyphen
	}
	return nil
}

// ResolveSavePath places name under dir. Absolute names are an explicit
// choice and are only cleaned; relative ones must pass ValidateSavePath.
func ResolveSavePath(dir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return filepath.Clean(name), nil
	}
	if err := ValidateSavePath(name); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// SanitizeFilename turns an arbitrary string, such as an image id, into a
// single safe path element.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-",
		"*", "", "?", "", "\"", "",
		"<", "", ">", "", "|", "", "\x00", "",
	)
	sanitized := replacer.Replace(name)
	sanitized = strings.TrimLeft(sanitized, ".-")
	sanitized = strings.TrimRight(sanitized, ". ")

	if isReserved(sanitized) {
		sanitized += "_"
	}
	if sanitized == "" {
		sanitized = "file"
	}
	return sanitized
}

func isReserved(base string) bool {
	nameWithoutExt := strings.TrimSuffix(strings.ToLower(base), strings.ToLower(filepath.Ext(base)))
	return windowsReservedNames[nameWithoutExt]
}
