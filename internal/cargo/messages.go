package cargo

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

const (
	ReasonCompilerArtifact = "compiler-artifact"
	ReasonCompilerMessage  = "compiler-message"
	ReasonBuildFinished    = "build-finished"
	ReasonText             = "text"
)

// Diagnostic is a compiler diagnostic; only the rendered form is kept.
type Diagnostic struct {
	Rendered string `json:"rendered"`
}

// Message is one event of cargo's --message-format json stream. Lines that
// are not JSON come back with Reason ReasonText and the raw line in Text.
type Message struct {
	Reason       string      `json:"reason"`
	PackageID    string      `json:"package_id"`
	ManifestPath string      `json:"manifest_path"`
	Target       Target      `json:"target"`
	Executable   *string     `json:"executable"`
	Message      *Diagnostic `json:"message"`
	Success      bool        `json:"success"`

	Text string `json:"-"`
}

// ParseMessages decodes r line by line, calling fn for each event in order.
// It stops at the first error returned by fn.
func ParseMessages(r io.Reader, fn func(Message) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		msg := Message{Reason: ReasonText, Text: line}
		if strings.HasPrefix(strings.TrimSpace(line), "{") {
			var decoded Message
			if err := json.Unmarshal([]byte(line), &decoded); err == nil && decoded.Reason != "" {
				msg = decoded
			}
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
	return scanner.Err()
}
