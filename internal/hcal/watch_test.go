package hcal

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchEmitsInitialAndUpdatedInventory(t *testing.T) {
	path := writeInventory(t, testInventory)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := Watch(ctx, path, nil)
	require.NoError(t, err)

	select {
	case inv := <-ch:
		require.NotNil(t, inv)
		assert.Len(t, inv.Devices, 3)
	case <-time.After(5 * time.Second):
		t.Fatal("no initial inventory")
	}

	// Drop one device and rewrite.
	updated := strings.Replace(testInventory, `  - id: gpu-2
    kind: t4
    memory_mib: 16384
    profile: default
`, "", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0644))

	deadline := time.After(10 * time.Second)
	for {
		select {
		case inv, ok := <-ch:
			require.True(t, ok, "channel closed before update arrived")
			if len(inv.Devices) == 2 {
				return // got the update
			}
		case <-deadline:
			t.Fatal("no updated inventory")
		}
	}
}

func TestWatchSkipsInvalidRewrite(t *testing.T) {
	path := writeInventory(t, testInventory)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := Watch(ctx, path, nil)
	require.NoError(t, err)
	<-ch // initial

	// A broken intermediate state must not be emitted.
	require.NoError(t, os.WriteFile(path, []byte("devices: ["), 0644))

	select {
	case inv, ok := <-ch:
		if ok {
			t.Fatalf("unexpected inventory emitted: %+v", inv)
		}
	case <-time.After(500 * time.Millisecond):
		// Nothing emitted: correct.
	}
}

func TestWatchClosesOnCancel(t *testing.T) {
	path := writeInventory(t, testInventory)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := Watch(ctx, path, nil)
	require.NoError(t, err)
	<-ch
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel must close after cancel")
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not close")
	}
}

func TestWatchMissingFile(t *testing.T) {
	_, err := Watch(context.Background(), "/nonexistent/inventory.yaml", nil)
	require.Error(t, err)
}
