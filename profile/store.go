// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package profile

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// DataEnvKey overrides the location of the profiles file.
const DataEnvKey = "RELOCATE_DATA"

// DefaultPath returns the path of the profiles file: $RELOCATE_DATA if
// set, else under $XDG_DATA_HOME, else under ~/.local/share.
func DefaultPath() string {
	if path := os.Getenv(DataEnvKey); path != "" {
		return path
	}
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "relocate", "profiles.yaml")
}

// Store reads and writes profiles in a YAML file.
type Store struct {
	path string
}

// NewStore returns a store backed by the file at path. The file does
// not need to exist.
func NewStore(path string) *Store {
	return &Store{path: path}
}

type profilesFile struct {
	Profiles map[string]map[string]interface{} `yaml:"profiles"`
}

func (s *Store) read() (profilesFile, error) {
	var f profilesFile
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return f, errors.Annotate(err, "reading profiles")
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, errors.Annotatef(err, "parsing %s", s.path)
	}
	return f, nil
}

// Get returns the named profile.
func (s *Store) Get(name string) (Profile, error) {
	f, err := s.read()
	if err != nil {
		return Profile{}, errors.Trace(err)
	}
	attrs, ok := f.Profiles[name]
	if !ok {
		return Profile{}, errors.NotFoundf("profile %q", name)
	}
	return FromAttributes(name, attrs)
}

// List returns the profiles sorted by name. Invalid entries are
// reported as an error.
func (s *Store) List() ([]Profile, error) {
	f, err := s.read()
	if err != nil {
		return nil, errors.Trace(err)
	}
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	profiles := make([]Profile, 0, len(names))
	for _, name := range names {
		p, err := FromAttributes(name, f.Profiles[name])
		if err != nil {
			return nil, errors.Trace(err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Put validates and saves the profile, replacing any profile with the
// same name.
func (s *Store) Put(p Profile) error {
	if p.SSHUser == "" {
		p.SSHUser = DefaultSSHUser
	}
	if p.SSHPort == 0 {
		p.SSHPort = DefaultSSHPort
	}
	if err := p.Validate(); err != nil {
		return errors.Trace(err)
	}
	f, err := s.read()
	if err != nil {
		return errors.Trace(err)
	}
	if f.Profiles == nil {
		f.Profiles = make(map[string]map[string]interface{})
	}
	f.Profiles[p.Name] = p.attributes()

	data, err := yaml.Marshal(f)
	if err != nil {
		return errors.Trace(err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return errors.Annotate(err, "creating profiles directory")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.Annotate(err, "writing profiles")
	}
	return errors.Annotate(os.Rename(tmp, s.path), "writing profiles")
}

// Pair loads the source and target profiles.
func (s *Store) Pair(source, target string) (Pair, error) {
	var (
		pair Pair
		err  error
	)
	if pair.Source, err = s.Get(source); err != nil {
		return Pair{}, errors.Annotate(err, "source")
	}
	if pair.Target, err = s.Get(target); err != nil {
		return Pair{}, errors.Annotate(err, "target")
	}
	return pair, nil
}
