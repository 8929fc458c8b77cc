package quickaction

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyLabel     = errors.New("quick action label is required")
	ErrDuplicateLabel = errors.New("duplicate quick action label")
)

// Store exposes the ordered quick-action menu.
type Store interface {
	List() []Action
	FindByLabel(label string) (Action, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Action
}

// NewMemoryStore validates and stores the supplied menu in order.
func NewMemoryStore(items []Action) (*MemoryStore, error) {
	seen := make(map[string]struct{}, len(items))
	normalized := make([]Action, 0, len(items))
	for i, item := range items {
		item.Label = strings.TrimSpace(item.Label)
		if item.Label == "" {
			return nil, fmt.Errorf("action %d: %w", i, ErrEmptyLabel)
		}
		if _, ok := seen[item.Label]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, item.Label)
		}
		seen[item.Label] = struct{}{}
		if item.ID == "" {
			item.ID = slug(item.Label)
		}
		normalized = append(normalized, item)
	}
	return &MemoryStore{items: normalized}, nil
}

// List returns the menu in display order.
func (s *MemoryStore) List() []Action {
	return append([]Action(nil), s.items...)
}

// FindByLabel looks up an action by its exact label.
func (s *MemoryStore) FindByLabel(label string) (Action, bool) {
	for _, item := range s.items {
		if item.Label == label {
			return item, true
		}
	}
	return Action{}, false
}

type menuFile struct {
	Actions []Action `yaml:"actions"`
}

// LoadFile reads a YAML menu of the form `actions: [{id, label}]`.
func LoadFile(path string) ([]Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quick actions file: %w", err)
	}

	var menu menuFile
	if err := yaml.Unmarshal(data, &menu); err != nil {
		return nil, fmt.Errorf("parse quick actions file %s: %w", path, err)
	}
	if len(menu.Actions) == 0 {
		return nil, fmt.Errorf("quick actions file %s defines no actions", path)
	}
	return menu.Actions, nil
}

func slug(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), "-")
}
