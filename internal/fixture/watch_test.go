package fixture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherSeesRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "module.json")
	require.NoError(t, os.WriteFile(path, []byte(counterFixture), 0o644))

	fw, err := NewWatcher(path)
	if err != nil {
		t.Skip("fsnotify not supported:", err)
	}
	defer fw.Close()

	go func() {
		_ = os.WriteFile(path, []byte(counterFixture), 0o644)
	}()

	select {
	case ev := <-fw.Events():
		require.Equal(t, "module.json", filepath.Base(ev.Path))
		require.True(t, ev.Op.Touched())
	case err := <-fw.Errors():
		t.Fatalf("watch error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for fixture change")
	}
}

func TestWatcherIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "module.json")
	require.NoError(t, os.WriteFile(path, []byte(counterFixture), 0o644))

	fw, err := NewWatcher(path)
	if err != nil {
		t.Skip("fsnotify not supported:", err)
	}
	defer fw.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644))

	select {
	case ev := <-fw.Events():
		t.Fatalf("unexpected event for %s", ev.Path)
	case <-time.After(200 * time.Millisecond):
	}
}
