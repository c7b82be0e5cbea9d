// Package cargo drives the cargo toolchain: workspace metadata, package
// selection, the JSON build-message stream and Cargo.toml bench sections.
package cargo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
)

// ExecCommand creates every cargo process.
// This can be replaced in tests to inject a fake toolchain.
var ExecCommand = exec.CommandContext

// Command returns a cargo invocation.
func Command(ctx context.Context, args ...string) *exec.Cmd {
	return ExecCommand(ctx, "cargo", args...)
}

// Target is a build target of a package.
type Target struct {
	Name    string   `json:"name"`
	Kind    []string `json:"kind"`
	SrcPath string   `json:"src_path"`
}

// IsBench reports whether the target is a benchmark target.
func (t Target) IsBench() bool {
	for _, k := range t.Kind {
		if k == "bench" {
			return true
		}
	}
	return false
}

// Package is a package of the workspace as reported by cargo metadata.
type Package struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	ManifestPath string   `json:"manifest_path"`
	Targets      []Target `json:"targets"`
}

// Root is the package directory, the parent of its manifest.
func (p Package) Root() string {
	return filepath.Dir(p.ManifestPath)
}

// Metadata is the subset of `cargo metadata` output used here.
type Metadata struct {
	Packages                []Package `json:"packages"`
	WorkspaceMembers        []string  `json:"workspace_members"`
	WorkspaceDefaultMembers []string  `json:"workspace_default_members"`
	WorkspaceRoot           string    `json:"workspace_root"`
	TargetDirectory         string    `json:"target_directory"`
}

// LoadMetadata runs `cargo metadata` in dir. An empty dir uses the current
// working directory.
func LoadMetadata(ctx context.Context, dir string) (*Metadata, error) {
	cmd := Command(ctx, "metadata", "--format-version", "1", "--no-deps")
	if dir != "" {
		cmd.Dir = dir
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("cargo metadata failed: %w\n%s", err, stderr.String())
	}

	var meta Metadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse cargo metadata: %w", err)
	}
	return &meta, nil
}

// PackageByID finds a package by its cargo package id.
func (m *Metadata) PackageByID(id string) (Package, bool) {
	for _, p := range m.Packages {
		if p.ID == id {
			return p, true
		}
	}
	return Package{}, false
}

// PackageByName finds a package by name.
func (m *Metadata) PackageByName(name string) (Package, bool) {
	for _, p := range m.Packages {
		if p.Name == name {
			return p, true
		}
	}
	return Package{}, false
}

// CodspeedDir is <target-dir>/codspeed/<buildDir>.
func (m *Metadata) CodspeedDir(buildDir string) string {
	return filepath.Join(m.TargetDirectory, "codspeed", buildDir)
}

func (m *Metadata) members(ids []string) []Package {
	var out []Package
	for _, id := range ids {
		if p, ok := m.PackageByID(id); ok {
			out = append(out, p)
		}
	}
	return out
}
