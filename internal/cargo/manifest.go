package cargo

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
)

type benchSection struct {
	Name    string `toml:"name"`
	Harness *bool  `toml:"harness"`
}

type manifest struct {
	Bench []benchSection `toml:"bench"`
}

// ManifestCache parses each Cargo.toml at most once.
type ManifestCache struct {
	mu        sync.Mutex
	manifests map[string]*manifest
}

func NewManifestCache() *ManifestCache {
	return &ManifestCache{manifests: make(map[string]*manifest)}
}

func (c *ManifestCache) load(path string) (*manifest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.manifests[path]; ok {
		return m, nil
	}
	var m manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	c.manifests[path] = &m
	return &m, nil
}

// HarnessEnabled reports whether bench target name in the manifest at path
// still uses the default harness. Cargo's default applies when there is no
// [[bench]] section for the target or it omits the harness key.
func (c *ManifestCache) HarnessEnabled(path, name string) (bool, error) {
	m, err := c.load(path)
	if err != nil {
		return false, err
	}
	for _, b := range m.Bench {
		if b.Name == name {
			if b.Harness == nil {
				return true, nil
			}
			return *b.Harness, nil
		}
	}
	return true, nil
}
