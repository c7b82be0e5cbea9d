package codspeed

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"codspeed/internal/config"

	"github.com/stretchr/testify/require"
)

var errToggle = errors.New("toggle failed")

// recordingBackend logs every call it receives.
type recordingBackend struct {
	active   bool
	calls    []string
	toggles  int
	startErr error
	closed   bool

	// failToggle makes the n-th ToggleCollect call fail, counting from 1.
	failToggle int
}

func (b *recordingBackend) IsActive() bool { return b.active }

func (b *recordingBackend) StartBenchmark() error {
	b.calls = append(b.calls, "start")
	return b.startErr
}

func (b *recordingBackend) StopBenchmark() error {
	b.calls = append(b.calls, "stop")
	return nil
}

func (b *recordingBackend) SetExecutedBenchmark(_ int, uri string) error {
	b.calls = append(b.calls, "executed "+uri)
	return nil
}

func (b *recordingBackend) SetIntegration(name, version string) error {
	b.calls = append(b.calls, fmt.Sprintf("integration %s %s", name, version))
	return nil
}

func (b *recordingBackend) ToggleCollect() error {
	b.toggles++
	b.calls = append(b.calls, "toggle")
	if b.toggles == b.failToggle {
		return errToggle
	}
	return nil
}

func (b *recordingBackend) Close() error {
	b.closed = true
	return nil
}

func newTestEngine(t *testing.T, rt config.Runtime, b *recordingBackend) (*Engine, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	e, err := New(Config{Backend: b, Runtime: rt, Out: &out})
	require.NoError(t, err)
	b.calls = nil
	return e, &out
}
