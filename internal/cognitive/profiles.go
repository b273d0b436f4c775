package cognitive

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// WeightsSource resolves the calibration to use for a user
type WeightsSource interface {
	WeightsFor(userID string) Weights
}

// StaticWeights serves one calibration to every user
type StaticWeights Weights

// WeightsFor implements WeightsSource
func (s StaticWeights) WeightsFor(string) Weights {
	return Weights(s)
}

// profileFile is the on-disk layout:
//
//	[default]
//	version = "v2"
//	switch_cost_factor = 6
//
//	[users.octocat]
//	version = "v2-octocat"
//	fatigue_rate = 3
//
// Each table is decoded on top of its base, so a key set to 0 is kept and
// an absent key inherits.
type profileFile struct {
	Default toml.Primitive            `toml:"default"`
	Users   map[string]toml.Primitive `toml:"users"`
}

// Profiles holds per-user weight overrides loaded from a TOML file.
// Fields left unset fall back to the [default] table, then to DefaultWeights.
type Profiles struct {
	path string

	mu       sync.RWMutex
	defaults Weights
	users    map[string]Weights
}

// LoadProfiles reads a weight profile file. An empty path yields the built-in defaults.
func LoadProfiles(path string) (*Profiles, error) {
	p := &Profiles{
		path:     path,
		defaults: DefaultWeights(),
		users:    map[string]Weights{},
	}
	if path == "" {
		return p, nil
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the profile file. On error the previous profiles stay active.
func (p *Profiles) Reload() error {
	var f profileFile
	md, err := toml.DecodeFile(p.path, &f)
	if err != nil {
		return fmt.Errorf("failed to parse weight profiles %s: %w", p.path, err)
	}

	defaults := DefaultWeights()
	if md.IsDefined("default") {
		if err := md.PrimitiveDecode(f.Default, &defaults); err != nil {
			return fmt.Errorf("failed to decode default weights: %w", err)
		}
	}
	if err := defaults.Validate(); err != nil {
		return fmt.Errorf("invalid default weights: %w", err)
	}
	users := make(map[string]Weights, len(f.Users))
	for userID, override := range f.Users {
		w := defaults
		if err := md.PrimitiveDecode(override, &w); err != nil {
			return fmt.Errorf("failed to decode weights for user %s: %w", userID, err)
		}
		if err := w.Validate(); err != nil {
			return fmt.Errorf("invalid weights for user %s: %w", userID, err)
		}
		users[userID] = w
	}

	p.mu.Lock()
	p.defaults = defaults
	p.users = users
	p.mu.Unlock()
	return nil
}

// WeightsFor implements WeightsSource
func (p *Profiles) WeightsFor(userID string) Weights {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if w, ok := p.users[userID]; ok {
		return w
	}
	return p.defaults
}

// Watch reloads the profile file whenever it changes until ctx is cancelled.
// The parent directory is watched so editors that replace the file are seen.
func (p *Profiles) Watch(ctx context.Context) error {
	if p.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", p.path, err)
	}

	target := filepath.Clean(p.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if err := p.Reload(); err != nil {
					log.Printf("[Engine] Keeping previous weight profiles: %v", err)
					continue
				}
				log.Printf("[Engine] Reloaded weight profiles from %s", p.path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[Engine] Weight profile watcher error: %v", err)
			}
		}
	}()
	return nil
}
