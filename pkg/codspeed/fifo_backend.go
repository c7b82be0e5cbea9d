package codspeed

import (
	"errors"
	"fmt"
	"time"

	"codspeed/internal/fifo"
	"codspeed/internal/version"
)

// AckTimeout bounds every wait for a runner acknowledgement.
var AckTimeout = 5 * time.Second

// FifoBackend forwards benchmark boundaries to the CodSpeed runner through
// its control and acknowledgement pipes.
type FifoBackend struct {
	ctl *fifo.Fifo
	ack *fifo.Fifo
}

// NewFifoBackend connects to the runner and announces the integration.
func NewFifoBackend(ctlPath, ackPath string) (*FifoBackend, error) {
	ack, err := fifo.Connect(ackPath)
	if err != nil {
		return nil, err
	}
	// Our read end of the ack pipe has to exist before the runner writes to it.
	if _, err := ack.WithReader(); err != nil {
		return nil, err
	}
	ctl, err := fifo.Connect(ctlPath)
	if err != nil {
		ack.Close()
		return nil, err
	}
	if _, err := ctl.WithWriter(); err != nil {
		ack.Close()
		return nil, err
	}

	b := &FifoBackend{ctl: ctl, ack: ack}
	if err := b.SetIntegration(version.Name, version.Version); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *FifoBackend) send(cmd fifo.Command) error {
	if err := b.ctl.Send(cmd); err != nil {
		return err
	}
	if err := b.ack.WaitForAck(AckTimeout); err != nil {
		return fmt.Errorf("runner did not acknowledge %s: %w", cmd.Kind, err)
	}
	return nil
}

func (b *FifoBackend) IsActive() bool { return true }

func (b *FifoBackend) StartBenchmark() error {
	return b.send(fifo.Command{Kind: fifo.StartBenchmark})
}

func (b *FifoBackend) StopBenchmark() error {
	return b.send(fifo.Command{Kind: fifo.StopBenchmark})
}

func (b *FifoBackend) SetExecutedBenchmark(pid int, uri string) error {
	return b.send(fifo.Command{Kind: fifo.CurrentBenchmark, Pid: pid, URI: uri})
}

func (b *FifoBackend) SetIntegration(name, version string) error {
	return b.send(fifo.Command{Kind: fifo.SetIntegration, Name: name, Version: version})
}

// ToggleCollect is a no-op: the runner samples between start and stop.
func (b *FifoBackend) ToggleCollect() error { return nil }

func (b *FifoBackend) Close() error {
	return errors.Join(b.ctl.Close(), b.ack.Close())
}
