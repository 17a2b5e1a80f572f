package store_test

import (
	"path/filepath"
	"testing"

	"agentrunner/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain ensures no goroutines leak from database handles.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func openTestGraph(t *testing.T) (*store.MemoryGraph, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")
	g, err := store.Open(path, "")
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g, path
}
