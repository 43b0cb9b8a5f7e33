package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// WorkItem is one unit of batch work. The core only reads Organism and Release;
// Payload is carried through to the runner untouched.
type WorkItem struct {
	ID       string            `json:"id" yaml:"id"`
	Organism string            `json:"organism" yaml:"organism"`
	Release  int               `json:"release" yaml:"release"`
	Payload  map[string]string `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// Validate checks if the item has the fields the aggregator relies on
func (w WorkItem) Validate() error {
	if w.Organism == "" {
		return errors.New("work item organism is required")
	}
	if w.Release < 0 {
		return fmt.Errorf("work item %s: release must be non-negative, got %d", w.Key(), w.Release)
	}
	return nil
}

// Key returns the item ID, or "<organism>@<release>" when no ID was assigned.
func (w WorkItem) Key() string {
	if w.ID != "" {
		return w.ID
	}
	return fmt.Sprintf("%s@%d", w.Organism, w.Release)
}

// Get returns a payload value and whether it was present.
func (w WorkItem) Get(key string) (string, bool) {
	if w.Payload == nil {
		return "", false
	}
	v, ok := w.Payload[key]
	return v, ok
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeOrganism converts an organism name to the directory form used on disk:
// lowercase, runs of non-alphanumerics collapsed to "_", no leading/trailing "_".
// "Homo sapiens" becomes "homo_sapiens".
func NormalizeOrganism(name string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(s, "_")
}
