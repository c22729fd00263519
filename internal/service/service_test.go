package service

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xiangqi/internal/engine"
	"xiangqi/internal/ucci"
)

// engineScript is a minimal UCCI engine for integration tests: it
// answers the handshake, replies to every search instantly, and honors
// the quit handshake.
const engineScript = `#!/bin/sh
while read cmd rest; do
	case "$cmd" in
	ucci)
		printf 'id name scriptengine\n'
		printf 'option hashsize type spin min 16 max 1024 default 64\n'
		printf 'ucciok\n'
		;;
	go)
		printf 'info depth 1 score cp 10 pv h2e2\n'
		printf 'bestmove h2e2\n'
		;;
	quit)
		printf 'bye\n'
		exit 0
		;;
	esac
done
`

func scriptEngineConfig(t *testing.T) engine.Config {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script engine double")
	}
	path := filepath.Join(t.TempDir(), "scriptengine.sh")
	require.NoError(t, os.WriteFile(path, []byte(engineScript), 0o755))
	return engine.Config{Name: "script", Path: path, GraceTimeout: time.Second}
}

// waitRouted consumes the registry stream until an event of type T
// arrives for the given handle.
func waitRouted[T engine.Event](t *testing.T, svc *Service, handle string) T {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case routed, ok := <-svc.Events():
			if !ok {
				t.Fatalf("registry stream closed while waiting for %T", *new(T))
			}
			if routed.Handle != handle {
				continue
			}
			if typed, match := routed.Event.(T); match {
				return typed
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %T", *new(T))
		}
	}
}

func TestServiceUnknownHandle(t *testing.T) {
	svc := New(nil)
	defer svc.ShutdownAll()

	assert.ErrorIs(t, svc.SetPosition("nope", ucci.Position{}), ErrNotFound)
	assert.ErrorIs(t, svc.StartSearch("nope", ucci.Position{}, ucci.SearchParams{Depth: 1}), ErrNotFound)
	assert.ErrorIs(t, svc.Stop("nope"), ErrNotFound)
	assert.ErrorIs(t, svc.SetOption("nope", "hashsize", "64"), ErrNotFound)
	assert.ErrorIs(t, svc.Destroy("nope"), ErrNotFound)

	_, err := svc.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, svc.List())
}

func TestServiceCreateSpawnFailure(t *testing.T) {
	svc := New(nil)
	defer svc.ShutdownAll()

	_, err := svc.Create(engine.Config{Name: "ghost", Path: "/no/such/engine"})
	require.Error(t, err)
	assert.Empty(t, svc.List())
}

func TestServiceSearchLifecycle(t *testing.T) {
	svc := New(nil)
	defer svc.ShutdownAll()

	handle, err := svc.Create(scriptEngineConfig(t))
	require.NoError(t, err)

	adv := waitRouted[engine.OptionsAdvertised](t, svc, handle)
	assert.Equal(t, "scriptengine", adv.Identity["name"])

	list := svc.List()
	require.Len(t, list, 1)
	assert.Equal(t, handle, list[0].Handle)
	assert.Equal(t, "script", list[0].Name)

	require.NoError(t, svc.StartSearch(handle, ucci.Position{Moves: []string{"h2e2"}}, ucci.SearchParams{MoveTimeMs: 100}))

	info := waitRouted[engine.SearchInfoUpdated](t, svc, handle)
	assert.Equal(t, 1, info.Info.Depth)

	best := waitRouted[engine.BestMoveFound](t, svc, handle)
	assert.Equal(t, "h2e2", best.Move.Move)

	session, err := svc.Get(handle)
	require.NoError(t, err)
	require.NotNil(t, session.LastBestMove())
	assert.Equal(t, "h2e2", session.LastBestMove().Move)
}

func TestServiceDestroyRetiresHandle(t *testing.T) {
	svc := New(nil)
	defer svc.ShutdownAll()

	handle, err := svc.Create(scriptEngineConfig(t))
	require.NoError(t, err)
	waitRouted[engine.OptionsAdvertised](t, svc, handle)

	require.NoError(t, svc.Destroy(handle))

	term := waitRouted[engine.Terminated](t, svc, handle)
	assert.Equal(t, engine.TerminatedQuit, term.Reason.Kind)

	_, err = svc.Get(handle)
	assert.ErrorIs(t, err, ErrNotFound)
}

// busyEngineScript never concludes a search, so a destroyed session has
// a search genuinely in flight.
const busyEngineScript = `#!/bin/sh
while read cmd rest; do
	case "$cmd" in
	ucci)
		printf 'id name busyengine\n'
		printf 'ucciok\n'
		;;
	go)
		printf 'info depth 1 score cp 5 pv h2e2\n'
		;;
	quit)
		printf 'bye\n'
		exit 0
		;;
	esac
done
`

func TestServiceDestroyWithSearchInFlight(t *testing.T) {
	svc := New(nil)
	defer svc.ShutdownAll()

	if runtime.GOOS == "windows" {
		t.Skip("shell script engine double")
	}
	path := filepath.Join(t.TempDir(), "busyengine.sh")
	require.NoError(t, os.WriteFile(path, []byte(busyEngineScript), 0o755))
	cfg := engine.Config{Name: "busy", Path: path, GraceTimeout: time.Second}

	handle, err := svc.Create(cfg)
	require.NoError(t, err)
	waitRouted[engine.OptionsAdvertised](t, svc, handle)

	require.NoError(t, svc.StartSearch(handle, ucci.Position{}, ucci.SearchParams{Infinite: true}))
	waitRouted[engine.SearchInfoUpdated](t, svc, handle)

	start := time.Now()
	require.NoError(t, svc.Destroy(handle))
	assert.Less(t, time.Since(start), 5*time.Second)

	term := waitRouted[engine.Terminated](t, svc, handle)
	assert.Equal(t, engine.TerminatedQuit, term.Reason.Kind)

	// The handle is retired; further commands are rejected.
	assert.ErrorIs(t, svc.Stop(handle), ErrNotFound)
	_, err = svc.Get(handle)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceShutdownAllClosesStream(t *testing.T) {
	svc := New(nil)

	handle, err := svc.Create(scriptEngineConfig(t))
	require.NoError(t, err)
	waitRouted[engine.OptionsAdvertised](t, svc, handle)

	done := make(chan struct{})
	go func() {
		// Drain until the stream closes; ShutdownAll blocks on the
		// forwarders otherwise.
		for range svc.Events() {
		}
		close(done)
	}()

	svc.ShutdownAll()
	svc.ShutdownAll() // idempotent

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("registry stream did not close after shutdown")
	}
	assert.Empty(t, svc.List())
}
