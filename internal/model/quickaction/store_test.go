package quickaction

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeedKeepsMenuOrder(t *testing.T) {
	store, err := NewMemoryStore(Seed())
	require.NoError(t, err)

	labels := make([]string, 0, 6)
	for _, a := range store.List() {
		labels = append(labels, a.Label)
	}
	require.Equal(t, []string{
		"Track my order", "Return an item", "Shipping info",
		"Payment methods", "Contact support", "Product availability",
	}, labels)
}

func TestFindByLabel(t *testing.T) {
	store, err := NewMemoryStore(Seed())
	require.NoError(t, err)

	action, ok := store.FindByLabel("Shipping info")
	require.True(t, ok)
	require.Equal(t, "shipping-info", action.ID)

	_, ok = store.FindByLabel("shipping info")
	require.False(t, ok)
}

func TestNewMemoryStoreValidates(t *testing.T) {
	_, err := NewMemoryStore([]Action{{Label: "  "}})
	require.ErrorIs(t, err, ErrEmptyLabel)

	_, err = NewMemoryStore([]Action{{Label: "Help"}, {Label: "Help "}})
	require.ErrorIs(t, err, ErrDuplicateLabel)
}

func TestListReturnsCopy(t *testing.T) {
	store, err := NewMemoryStore(Seed())
	require.NoError(t, err)

	items := store.List()
	items[0].Label = "mutated"
	require.Equal(t, "Track my order", store.List()[0].Label)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menu.yaml")
	content := "actions:\n  - label: Where is my refund?\n  - id: agent\n    label: Talk to a human\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	actions, err := LoadFile(path)
	require.NoError(t, err)

	store, err := NewMemoryStore(actions)
	require.NoError(t, err)
	require.Equal(t, []Action{
		{ID: "where-is-my-refund?", Label: "Where is my refund?"},
		{ID: "agent", Label: "Talk to a human"},
	}, store.List())
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("actions: []\n"), 0o600))
	_, err = LoadFile(path)
	require.Error(t, err)
}
