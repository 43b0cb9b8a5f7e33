package discovery

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harrison/annobatch/internal/models"
)

// Format represents the format of a manifest file
type Format int

const (
	// FormatUnknown represents an unknown or unsupported file format
	FormatUnknown Format = iota
	// FormatJSON is a JSON array of items, or an object with an "items" array
	FormatJSON
	// FormatJSONL is one JSON item per line
	FormatJSONL
	// FormatYAML is a YAML list of items, or a mapping with an "items" list
	FormatYAML
)

// String returns the string representation of the Format
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatJSONL:
		return "jsonl"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// DetectFormat detects the manifest format from the file extension
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return FormatJSON
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatUnknown
	}
}

type itemList struct {
	Items []models.WorkItem `json:"items" yaml:"items"`
}

// LoadManifest reads work items from a manifest file. Item order is the file
// order; every item must carry an organism.
func LoadManifest(path string) ([]models.WorkItem, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unsupported manifest format: %s", filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	items, err := ParseManifest(data, format)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", filepath.Base(path), err)
	}
	return items, nil
}

// ParseManifest decodes manifest bytes in the given format.
func ParseManifest(data []byte, format Format) ([]models.WorkItem, error) {
	var items []models.WorkItem
	var err error
	switch format {
	case FormatJSON:
		items, err = parseJSON(data)
	case FormatJSONL:
		items, err = parseJSONL(data)
	case FormatYAML:
		items, err = parseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported format: %v", format)
	}
	if err != nil {
		return nil, err
	}

	for i, item := range items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return items, nil
}

func parseJSON(data []byte) ([]models.WorkItem, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var list itemList
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list.Items, nil
	}
	var items []models.WorkItem
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func parseJSONL(data []byte) ([]models.WorkItem, error) {
	var items []models.WorkItem
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}
		var item models.WorkItem
		if err := json.Unmarshal(text, &item); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		items = append(items, item)
	}
	return items, sc.Err()
}

func parseYAML(data []byte) ([]models.WorkItem, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]
	if root.Kind == yaml.MappingNode {
		var list itemList
		if err := root.Decode(&list); err != nil {
			return nil, err
		}
		return list.Items, nil
	}
	var items []models.WorkItem
	if err := root.Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}

// Load returns the items behind source: a directory is scanned with opts, a
// file is read as a manifest.
func Load(source string, opts ScanOptions) ([]models.WorkItem, error) {
	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("items source: %w", err)
	}
	if info.IsDir() {
		return Scan(source, opts)
	}
	items, err := LoadManifest(source)
	if err != nil {
		return nil, err
	}
	if opts.Release > 0 {
		items = FilterRelease(items, opts.Release)
	}
	if opts.Normalize {
		for i := range items {
			items[i].Organism = models.NormalizeOrganism(items[i].Organism)
		}
	}
	return items, nil
}

// FilterRelease keeps the items for one release, preserving order.
func FilterRelease(items []models.WorkItem, release int) []models.WorkItem {
	out := make([]models.WorkItem, 0, len(items))
	for _, item := range items {
		if item.Release == release {
			out = append(out, item)
		}
	}
	return out
}
