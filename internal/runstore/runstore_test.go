package runstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSubmitAndQueryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	r, err := s.Submit("run-1", "demo", "cfg.json", "run.log", "out/run-1", 1)
	require.NoError(t, err)
	require.Equal(t, Created, r.Status)

	got, err := s.Query("run-1")
	require.NoError(t, err)
	require.Equal(t, "demo", got.Name)
	require.Equal(t, Created, got.Status)
}

func TestTransitionUpdatesStatus(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Submit("run-2", "demo", "cfg.json", "run.log", "out/run-2", 1)
	require.NoError(t, err)

	require.NoError(t, s.Transition("run-2", Running))
	got, err := s.Query("run-2")
	require.NoError(t, err)
	require.Equal(t, Running, got.Status)

	require.NoError(t, s.Transition("run-2", Failure))
	got, err = s.Query("run-2")
	require.NoError(t, err)
	require.Equal(t, Failure, got.Status)
}

func TestTransitionUnknownRunErrors(t *testing.T) {
	s := openTestStore(t)
	err := s.Transition("nope", Running)
	require.Error(t, err)
}

func TestFetchRequiresSuccess(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Submit("run-3", "demo", "cfg.json", "run.log", "out/run-3", 1)
	require.NoError(t, err)

	_, err = s.Fetch("run-3")
	require.Error(t, err)

	require.NoError(t, s.Transition("run-3", Success))
	dir, err := s.Fetch("run-3")
	require.NoError(t, err)
	require.Equal(t, "out/run-3", dir)
}
