// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package profile_test

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/relocate/internal/ssh"
	"github.com/juju/relocate/profile"
)

type profileSuite struct {
	testing.IsolationSuite

	path  string
	store *profile.Store
}

var _ = gc.Suite(&profileSuite{})

func (s *profileSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.path = filepath.Join(c.MkDir(), "relocate", "profiles.yaml")
	s.store = profile.NewStore(s.path)
}

func (s *profileSuite) TestPutGet(c *gc.C) {
	err := s.store.Put(profile.Profile{
		Name:         "prod",
		Type:         profile.APIType,
		InfraBaseURL: "https://infra.example.com",
		APIUser:      "admin",
		APIKey:       "k",
		SSHKeyFile:   "/root/.ssh/id_rsa",
	})
	c.Assert(err, jc.ErrorIsNil)

	p, err := s.store.Get("prod")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(p, jc.DeepEquals, profile.Profile{
		Name:         "prod",
		Type:         profile.APIType,
		InfraBaseURL: "https://infra.example.com",
		APIUser:      "admin",
		APIKey:       "k",
		SSHUser:      "root",
		SSHPort:      22,
		SSHKeyFile:   "/root/.ssh/id_rsa",
	})

	info, err := os.Stat(s.path)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info.Mode().Perm(), gc.Equals, os.FileMode(0600))
}

func (s *profileSuite) TestGetNotFound(c *gc.C) {
	_, err := s.store.Get("missing")
	c.Check(err, jc.Satisfies, errors.IsNotFound)
}

func (s *profileSuite) TestReadCoercesAndDefaults(c *gc.C) {
	err := os.MkdirAll(filepath.Dir(s.path), 0700)
	c.Assert(err, jc.ErrorIsNil)
	err = os.WriteFile(s.path, []byte(`
profiles:
  box:
    type: server
    hostname: m1.example.com
    ssh-port: 2222
  bad:
    type: cloud
`), 0600)
	c.Assert(err, jc.ErrorIsNil)

	p, err := s.store.Get("box")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(p.SSHPort, gc.Equals, 2222)
	c.Check(p.SSHUser, gc.Equals, "root")

	_, err = s.store.Get("bad")
	c.Check(err, gc.ErrorMatches, `profile "bad": type: .*`)

	_, err = s.store.List()
	c.Check(err, gc.NotNil)
}

func (s *profileSuite) TestList(c *gc.C) {
	for _, name := range []string{"b", "a"} {
		err := s.store.Put(profile.Profile{Name: name, Type: profile.ServerType, Hostname: name + ".example.com"})
		c.Assert(err, jc.ErrorIsNil)
	}
	profiles, err := s.store.List()
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(profiles, gc.HasLen, 2)
	c.Check(profiles[0].Name, gc.Equals, "a")
	c.Check(profiles[1].Name, gc.Equals, "b")
}

func (s *profileSuite) TestValidate(c *gc.C) {
	for i, t := range []struct {
		profile profile.Profile
		err     string
	}{
		{profile.Profile{Type: profile.APIType}, "empty profile name not valid"},
		{profile.Profile{Name: "a b", Type: profile.APIType}, `profile name "a b" not valid`},
		{profile.Profile{Name: "p", Type: profile.APIType, APIUser: "u"}, `api profile "p" without infra-base-url not valid`},
		{profile.Profile{Name: "p", Type: profile.ServerType}, `server profile "p" without hostname not valid`},
		{profile.Profile{Name: "p", Type: "other"}, `profile type "other" not valid`},
	} {
		c.Logf("test %d", i)
		c.Check(t.profile.Validate(), gc.ErrorMatches, t.err)
	}
}

func (s *profileSuite) TestPair(c *gc.C) {
	for _, name := range []string{"src", "dst"} {
		err := s.store.Put(profile.Profile{
			Name: name, Type: profile.APIType,
			InfraBaseURL: "https://infra.example.com/", APIUser: "admin",
		})
		c.Assert(err, jc.ErrorIsNil)
	}
	pair, err := s.store.Pair("src", "dst")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(pair.SameBackend(), jc.IsTrue)

	pair.Target.InfraBaseURL = "https://other.example.com"
	c.Check(pair.SameBackend(), jc.IsFalse)

	_, err = s.store.Pair("src", "nope")
	c.Check(err, gc.ErrorMatches, `target: profile "nope" not found`)
}

func (s *profileSuite) TestLogin(c *gc.C) {
	p := profile.Profile{Name: "box", Type: profile.ServerType, Hostname: "m1", SSHKeyFile: "/k"}
	login, err := p.LoginFunc()("m1")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(login, jc.DeepEquals, ssh.Login{
		Host: "m1", Port: 22, User: "root",
		Credential: ssh.Credential{PrivateKeyFile: "/k"},
	})
	_, err = p.LoginFunc()("m2")
	c.Check(err, jc.Satisfies, errors.IsNotValid)

	_, err = p.GraphConfig()
	c.Check(err, jc.Satisfies, errors.IsNotValid)
}

func (s *profileSuite) TestDefaultPath(c *gc.C) {
	s.PatchEnvironment(profile.DataEnvKey, "")
	s.PatchEnvironment("XDG_DATA_HOME", "/data")
	c.Check(profile.DefaultPath(), gc.Equals, "/data/relocate/profiles.yaml")
	s.PatchEnvironment(profile.DataEnvKey, "/elsewhere.yaml")
	c.Check(profile.DefaultPath(), gc.Equals, "/elsewhere.yaml")
}
