package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Item is one prompt of a batch file. Name, when set, replaces the file
// name derived from the prompt.
type Item struct {
	Index  int
	Prompt string
	Name   string
}

type jsonItem struct {
	Prompt string `json:"prompt"`
	Name   string `json:"name,omitempty"`
}

// ParseFile reads a .txt file (one prompt per line, # comments) or a .json
// array of {"prompt", "name"} objects.
func ParseFile(path string) ([]Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return ParseJSON(file)
	case ".txt", "":
		return ParseText(file)
	default:
		return nil, fmt.Errorf("unsupported file format %q: use .txt or .json", ext)
	}
}

func ParseText(r io.Reader) ([]Item, error) {
	var items []Item
	scanner := bufio.NewScanner(r)
	index := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		index++
		items = append(items, Item{
			Index:  index,
			Prompt: line,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no prompts found in file")
	}
	return items, nil
}

func ParseJSON(r io.Reader) ([]Item, error) {
	var jsonItems []jsonItem
	if err := json.NewDecoder(r).Decode(&jsonItems); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if len(jsonItems) == 0 {
		return nil, fmt.Errorf("no prompts found in file")
	}

	items := make([]Item, len(jsonItems))
	for i, ji := range jsonItems {
		if strings.TrimSpace(ji.Prompt) == "" {
			return nil, fmt.Errorf("item %d has empty prompt", i+1)
		}
		items[i] = Item{
			Index:  i + 1,
			Prompt: ji.Prompt,
			Name:   ji.Name,
		}
	}
	return items, nil
}
