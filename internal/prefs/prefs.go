package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	yaml "gopkg.in/yaml.v3"

	"github.com/dgallion1/zenview/internal/reveal"
)

// Themes the front-end knows about.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Prefs are the reader preferences that survive restarts. An empty Speed
// means the document's own default applies.
type Prefs struct {
	Speed   reveal.Speed `yaml:"speed,omitempty" json:"speed,omitempty"`
	Instant bool         `yaml:"instant" json:"instant"`
	Theme   string       `yaml:"theme" json:"theme"`
}

// Defaults returns the preferences of a first-time reader.
func Defaults() Prefs {
	return Prefs{Theme: ThemeLight}
}

// Store persists Prefs as a YAML file.
type Store struct {
	mu    sync.Mutex
	path  string
	prefs Prefs
}

// DefaultPath returns the preferences file under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "zenview", "prefs.yaml"), nil
}

// Open loads the store at path. A missing file yields defaults and an empty
// path keeps preferences in memory only.
func Open(path string) (*Store, error) {
	s := &Store{path: path, prefs: Defaults()}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read prefs: %w", err)
	}
	p := Defaults()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode prefs %s: %w", path, err)
	}
	if p.Speed != "" && !p.Speed.Valid() {
		p.Speed = ""
	}
	if p.Theme != ThemeDark {
		p.Theme = ThemeLight
	}
	s.prefs = p
	return s, nil
}

// Get returns the current preferences.
func (s *Store) Get() Prefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// SetSpeed records the preferred speed.
func (s *Store) SetSpeed(sp reveal.Speed) error {
	if !sp.Valid() {
		return fmt.Errorf("invalid speed %q", sp)
	}
	return s.update(func(p *Prefs) { p.Speed = sp })
}

// SetTheme records the theme.
func (s *Store) SetTheme(theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return fmt.Errorf("invalid theme %q", theme)
	}
	return s.update(func(p *Prefs) { p.Theme = theme })
}

// ToggleInstant flips instant mode and returns the new value.
func (s *Store) ToggleInstant() (bool, error) {
	var on bool
	err := s.update(func(p *Prefs) {
		p.Instant = !p.Instant
		on = p.Instant
	})
	return on, err
}

// ToggleTheme switches between light and dark and returns the new theme.
func (s *Store) ToggleTheme() (string, error) {
	var theme string
	err := s.update(func(p *Prefs) {
		if p.Theme == ThemeDark {
			p.Theme = ThemeLight
		} else {
			p.Theme = ThemeDark
		}
		theme = p.Theme
	})
	return theme, err
}

func (s *Store) update(fn func(p *Prefs)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.prefs
	fn(&next)
	if err := s.save(next); err != nil {
		return err
	}
	s.prefs = next
	return nil
}

// save replaces the file through a rename.
func (s *Store) save(p Prefs) error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}
