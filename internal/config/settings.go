package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keys lists the settings keys in file order.
var Keys = settingsKeys()

func settingsKeys() []string {
	t := reflect.TypeFor[Overrides]()
	keys := make([]string, 0, t.NumField())
	for i := range t.NumField() {
		if name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ","); name != "" {
			keys = append(keys, name)
		}
	}
	return keys
}

// Store reads and writes the YAML settings file.
type Store struct {
	path string
}

// NewStore returns a Store for the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultStore returns the Store for the user settings file,
// $XDG_CONFIG_HOME/silence-remover/config.yaml.
func DefaultStore() (*Store, error) {
	d, err := Dir()
	if err != nil {
		return nil, err
	}
	return NewStore(filepath.Join(d, settingsFile)), nil
}

// Path returns the settings file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the settings file. A missing file yields empty Overrides.
// Unknown keys are rejected.
func (s *Store) Load() (Overrides, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Overrides{}, nil
		}
		return Overrides{}, fmt.Errorf("failed to read config: %w", err)
	}

	var o Overrides
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil && !errors.Is(err, io.EOF) {
		return Overrides{}, fmt.Errorf("failed to parse config %s: %w", s.path, err)
	}
	if err := o.Validate(); err != nil {
		return Overrides{}, fmt.Errorf("config %s: %w", s.path, err)
	}
	return o, nil
}

// Save writes o to the settings file, creating its directory if needed.
func (s *Store) Save(o Overrides) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil { // #nosec G301 -- user config dir
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}
	return nil
}

// Set parses value for key, checks it, and saves it.
func (s *Store) Set(key, value string) error {
	if !slices.Contains(Keys, key) {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	doc := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: key},
			{Kind: yaml.ScalarNode, Value: value},
		},
	}
	var update Overrides
	if err := doc.Decode(&update); err != nil {
		return fmt.Errorf("%w: %s: %q is not a valid value", ErrInvalid, key, value)
	}
	if err := update.Validate(); err != nil {
		return err
	}

	current, err := s.Load()
	if err != nil {
		return err
	}
	return s.Save(current.Merge(update))
}

// Get returns the value of key, or "" if it is not set.
func (s *Store) Get(key string) (string, error) {
	if !slices.Contains(Keys, key) {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	values, err := s.List()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

// List returns every set key with its value rendered as text.
func (s *Store) List() (map[string]string, error) {
	o, err := s.Load()
	if err != nil {
		return nil, err
	}
	return o.Values()
}

// Values renders every set field as text, by settings key.
func (o Overrides) Values() (map[string]string, error) {
	data, err := yaml.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	values := make(map[string]string)
	if len(doc.Content) == 0 {
		return values, nil
	}
	m := doc.Content[0]
	for i := 0; i+1 < len(m.Content); i += 2 {
		values[m.Content[i].Value] = m.Content[i+1].Value
	}
	return values, nil
}
