// Package taxonomy holds the closed label set every document is scored against.
package taxonomy

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Taxonomy is an ordered, duplicate-free list of labels.
type Taxonomy struct {
	Labels []string `yaml:"labels"`
}

// Default returns the built-in document categories.
func Default() Taxonomy {
	return Taxonomy{Labels: []string{
		"Technical Documentation",
		"Business Proposal",
		"Legal Document",
		"Academic Paper",
		"General Article",
		"Other",
	}}
}

// Load reads a YAML file of the form:
//
//	labels:
//	  - Invoice
//	  - Receipt
//
// An empty path returns Default.
func Load(path string) (Taxonomy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, fmt.Errorf("read taxonomy: %w", err)
	}
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Taxonomy{}, fmt.Errorf("parse taxonomy %s: %w", path, err)
	}
	for i := range t.Labels {
		t.Labels[i] = strings.TrimSpace(t.Labels[i])
	}
	if err := t.Validate(); err != nil {
		return Taxonomy{}, fmt.Errorf("taxonomy %s: %w", path, err)
	}
	return t, nil
}

// Validate requires at least one label and no blank or repeated labels.
func (t Taxonomy) Validate() error {
	if len(t.Labels) == 0 {
		return errors.New("no labels defined")
	}
	seen := make(map[string]bool, len(t.Labels))
	for _, l := range t.Labels {
		if l == "" {
			return errors.New("blank label")
		}
		if seen[l] {
			return fmt.Errorf("duplicate label %q", l)
		}
		seen[l] = true
	}
	return nil
}
