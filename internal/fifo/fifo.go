// Package fifo implements the framed command channel the CodSpeed runner
// exposes over a pair of named pipes.
package fifo

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Pipes created by the runner.
const (
	RunnerCtlPath = "/tmp/runner.ctl.fifo"
	RunnerAckPath = "/tmp/runner.ack.fifo"
)

const maxFrameSize = 1 << 20

// Kind identifies a runner command.
type Kind string

const (
	CurrentBenchmark Kind = "CurrentBenchmark"
	StartBenchmark   Kind = "StartBenchmark"
	StopBenchmark    Kind = "StopBenchmark"
	Ack              Kind = "Ack"
	PingPerf         Kind = "PingPerf"
	SetIntegration   Kind = "SetIntegration"
	Err              Kind = "Err"
)

// Command is one frame on the channel. Only the fields of its Kind are set.
type Command struct {
	Kind    Kind   `json:"kind"`
	Pid     int    `json:"pid,omitempty"`
	URI     string `json:"uri,omitempty"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

var (
	ErrNoReader = errors.New("fifo reader not opened")
	ErrNoWriter = errors.New("fifo writer not opened")
	// ErrRunner is returned by WaitForAck when the runner answers Err.
	ErrRunner = errors.New("runner replied with an error")
)

// Fifo is one named pipe with optional read and write ends.
type Fifo struct {
	path   string
	reader *os.File
	writer *os.File
}

// Create replaces whatever is at path with a fresh fifo owned by the caller.
func Create(path string) (*Fifo, error) {
	_ = os.Remove(path)
	if err := unix.Mkfifo(path, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create fifo %s: %w", path, err)
	}
	return Connect(path)
}

// Connect attaches to an existing fifo without opening it.
func Connect(path string) (*Fifo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("fifo does not exist: %s: %w", path, err)
	}
	if info.Mode()&os.ModeNamedPipe == 0 {
		return nil, fmt.Errorf("%s is not a fifo", path)
	}
	return &Fifo{path: path}, nil
}

// Exists reports whether path is a named pipe.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode()&os.ModeNamedPipe != 0
}

// Path returns the fifo location.
func (f *Fifo) Path() string { return f.path }

// WithReader opens the read end. It must be opened before any writer,
// otherwise the writer fails with ENXIO.
func (f *Fifo) WithReader() (*Fifo, error) {
	r, err := os.OpenFile(f.path, os.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open fifo reader %s: %w", f.path, err)
	}
	f.reader = r
	return f, nil
}

// WithWriter opens the write end.
func (f *Fifo) WithWriter() (*Fifo, error) {
	w, err := os.OpenFile(f.path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open fifo writer %s: %w", f.path, err)
	}
	f.writer = w
	return f, nil
}

// Send writes cmd as a little-endian u32 length followed by its JSON body.
func (f *Fifo) Send(cmd Command) error {
	if f.writer == nil {
		return ErrNoWriter
	}
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to encode %s command: %w", cmd.Kind, err)
	}
	frame := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)
	if _, err := f.writer.Write(frame); err != nil {
		return fmt.Errorf("failed to send %s command: %w", cmd.Kind, err)
	}
	return nil
}

// Recv reads one frame. A zero timeout blocks until a frame arrives.
func (f *Fifo) Recv(timeout time.Duration) (Command, error) {
	if f.reader == nil {
		return Command{}, ErrNoReader
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := f.reader.SetReadDeadline(deadline); err != nil {
		return Command{}, fmt.Errorf("failed to set fifo deadline: %w", err)
	}

	var header [4]byte
	if _, err := io.ReadFull(f.reader, header[:]); err != nil {
		return Command{}, fmt.Errorf("failed to read frame header: %w", err)
	}
	size := binary.LittleEndian.Uint32(header[:])
	if size > maxFrameSize {
		return Command{}, fmt.Errorf("frame of %d bytes exceeds limit", size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(f.reader, body); err != nil {
		return Command{}, fmt.Errorf("failed to read frame body: %w", err)
	}

	var cmd Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		return Command{}, fmt.Errorf("failed to decode command: %w", err)
	}
	return cmd, nil
}

// WaitForAck drops frames until an Ack arrives.
func (f *Fifo) WaitForAck(timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		remaining := time.Duration(0)
		if !deadline.IsZero() {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				return fmt.Errorf("waiting for ack on %s: %w", f.path, os.ErrDeadlineExceeded)
			}
		}
		cmd, err := f.Recv(remaining)
		if err != nil {
			return err
		}
		switch cmd.Kind {
		case Ack:
			return nil
		case Err:
			return ErrRunner
		}
	}
}

// Close releases both ends.
func (f *Fifo) Close() error {
	var errs []error
	if f.reader != nil {
		errs = append(errs, f.reader.Close())
		f.reader = nil
	}
	if f.writer != nil {
		errs = append(errs, f.writer.Close())
		f.writer = nil
	}
	return errors.Join(errs...)
}
