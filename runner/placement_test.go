package runner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMover struct {
	mu    sync.Mutex
	moves []string
	fail  string
}

func (m *fakeMover) MoveTo(_ context.Context, device string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.moves = append(m.moves, device)
	if device == m.fail {
		return errors.New("kein speicher")
	}
	return nil
}

func TestPlacementInit(t *testing.T) {
	m := &fakeMover{}
	require.NoError(t, NewPlacement("ben2", m, "cuda", true).Init(t.Context()))
	require.NoError(t, NewPlacement("face", m, "cuda", false).Init(t.Context()))
	assert.Equal(t, []string{"cpu", "cuda"}, m.moves)
}

func TestPlacementOffloadScope(t *testing.T) {
	m := &fakeMover{}
	p := NewPlacement("ben2", m, "cuda", true)

	release, err := p.Acquire(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"cuda"}, m.moves)

	release()
	release() // zweiter Aufruf ist wirkungslos
	assert.Equal(t, []string{"cuda", "cpu"}, m.moves)

	// Lock ist wieder frei
	release, err = p.Acquire(t.Context())
	require.NoError(t, err)
	release()
	assert.Equal(t, []string{"cuda", "cpu", "cuda", "cpu"}, m.moves)
}

func TestPlacementReleasesAfterCanceledContext(t *testing.T) {
	m := &fakeMover{}
	p := NewPlacement("face", m, "cuda", true)

	ctx, cancel := context.WithCancel(t.Context())
	release, err := p.Acquire(ctx)
	require.NoError(t, err)
	cancel()
	release()

	assert.Equal(t, []string{"cuda", "cpu"}, m.moves)
}

func TestPlacementAcquireFailureMovesBack(t *testing.T) {
	m := &fakeMover{fail: "cuda"}
	p := NewPlacement("ben2", m, "cuda", true)

	_, err := p.Acquire(t.Context())
	require.Error(t, err)
	assert.Equal(t, []string{"cuda", "cpu"}, m.moves)

	// Kein Deadlock nach Fehler
	m.fail = ""
	release, err := p.Acquire(t.Context())
	require.NoError(t, err)
	release()
}

func TestPlacementWithoutOffload(t *testing.T) {
	m := &fakeMover{}
	p := NewPlacement("face", m, "cuda", false)

	release, err := p.Acquire(t.Context())
	require.NoError(t, err)
	release()
	assert.Empty(t, m.moves)
	assert.False(t, p.Offload())
}
