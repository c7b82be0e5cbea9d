package codspeed

import (
	"runtime"
)

const cgBase = uint64('C')<<24 | uint64('T')<<16

// Simulator client request codes.
const (
	requestRunningOnValgrind    = 0x1001
	requestZeroStatistics       = cgBase + 1
	requestToggleCollect        = cgBase + 2
	requestDumpStatisticsAt     = cgBase + 3
	requestStartInstrumentation = cgBase + 4
	requestStopInstrumentation  = cgBase + 5
)

// InlineBackend drives the CPU simulator through the magic instruction
// sequences it recognizes. Outside the simulator every request is a no-op
// returning its default value.
type InlineBackend struct{}

func request(code uint64, arg uint64) uint64 {
	args := [6]uint64{code, arg}
	return clientRequest(0, &args)
}

// requestString passes s as a NUL terminated C string.
func requestString(code uint64, s string) {
	buf := append([]byte(s), 0)
	args := [6]uint64{code, bytesAddr(buf)}
	clientRequest(0, &args)
	runtime.KeepAlive(buf)
}

func (InlineBackend) IsActive() bool {
	return request(requestRunningOnValgrind, 0) > 0
}

func (InlineBackend) StartBenchmark() error {
	request(requestZeroStatistics, 0)
	request(requestStartInstrumentation, 0)
	return nil
}

func (InlineBackend) StopBenchmark() error {
	request(requestStopInstrumentation, 0)
	return nil
}

// SetExecutedBenchmark dumps the collected statistics under uri.
func (InlineBackend) SetExecutedBenchmark(_ int, uri string) error {
	requestString(requestDumpStatisticsAt, uri)
	return nil
}

func (InlineBackend) SetIntegration(name, version string) error {
	requestString(requestDumpStatisticsAt, "Metadata: "+name+" "+version)
	return nil
}

func (InlineBackend) ToggleCollect() error {
	request(requestToggleCollect, 0)
	return nil
}

func (InlineBackend) Close() error { return nil }
