package run

import (
	"bytes"
	"strings"
)

// statusCounter counts the Measured/Checked lines printed by a benchmark
// process.
type statusCounter struct {
	buf   []byte
	count int
}

func (c *statusCounter) Write(p []byte) (int, error) {
	c.buf = append(c.buf, p...)
	for {
		i := bytes.IndexByte(c.buf, '\n')
		if i < 0 {
			break
		}
		c.line(string(c.buf[:i]))
		c.buf = c.buf[i+1:]
	}
	return len(p), nil
}

func (c *statusCounter) flush() {
	if len(c.buf) > 0 {
		c.line(string(c.buf))
		c.buf = nil
	}
}

func (c *statusCounter) line(l string) {
	if strings.Contains(l, "Measured:") || strings.Contains(l, "Checked:") {
		c.count++
	}
}
