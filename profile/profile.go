// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package profile holds the named connection profiles of the
// infrastructures relocate works with.
package profile

import (
	"strings"

	"github.com/juju/errors"
	"github.com/juju/schema"

	"github.com/juju/relocate/api/graph"
	"github.com/juju/relocate/internal/ssh"
)

// Type is the kind of a profile.
type Type string

const (
	// APIType profiles reach the resource graph of an infrastructure.
	APIType Type = "api"

	// ServerType profiles reach a single machine.
	ServerType Type = "server"
)

// Defaults for the ssh attributes of a profile.
const (
	DefaultSSHUser = "root"
	DefaultSSHPort = 22
)

// Profile describes how to reach an infrastructure.
type Profile struct {
	Name string `yaml:"-"`
	Type Type   `yaml:"type"`

	InfraBaseURL string `yaml:"infra-base-url,omitempty"`
	APIUser      string `yaml:"api-user,omitempty"`
	APIKey       string `yaml:"api-key,omitempty"`

	Hostname string `yaml:"hostname,omitempty"`

	SSHUser     string `yaml:"ssh-user,omitempty"`
	SSHPort     int    `yaml:"ssh-port,omitempty"`
	SSHKeyFile  string `yaml:"ssh-key-file,omitempty"`
	SSHPassword string `yaml:"ssh-password,omitempty"`
}

var checker = schema.FieldMap(
	schema.Fields{
		"type":           schema.OneOf(schema.Const(string(APIType)), schema.Const(string(ServerType))),
		"infra-base-url": schema.String(),
		"api-user":       schema.String(),
		"api-key":        schema.String(),
		"hostname":       schema.String(),
		"ssh-user":       schema.String(),
		"ssh-port":       schema.ForceInt(),
		"ssh-key-file":   schema.String(),
		"ssh-password":   schema.String(),
	},
	schema.Defaults{
		"infra-base-url": "",
		"api-user":       "",
		"api-key":        "",
		"hostname":       "",
		"ssh-user":       DefaultSSHUser,
		"ssh-port":       DefaultSSHPort,
		"ssh-key-file":   "",
		"ssh-password":   "",
	},
)

// FromAttributes coerces raw attributes, as read from YAML, into a
// validated profile.
func FromAttributes(name string, attrs map[string]interface{}) (Profile, error) {
	coerced, err := checker.Coerce(attrs, nil)
	if err != nil {
		return Profile{}, errors.Annotatef(err, "profile %q", name)
	}
	m := coerced.(map[string]interface{})
	p := Profile{
		Name:         name,
		Type:         Type(m["type"].(string)),
		InfraBaseURL: m["infra-base-url"].(string),
		APIUser:      m["api-user"].(string),
		APIKey:       m["api-key"].(string),
		Hostname:     m["hostname"].(string),
		SSHUser:      m["ssh-user"].(string),
		SSHPort:      m["ssh-port"].(int),
		SSHKeyFile:   m["ssh-key-file"].(string),
		SSHPassword:  m["ssh-password"].(string),
	}
	return p, errors.Trace(p.Validate())
}

// attributes returns the profile as the attributes FromAttributes
// accepts.
func (p Profile) attributes() map[string]interface{} {
	attrs := map[string]interface{}{
		"type":     string(p.Type),
		"ssh-user": p.SSHUser,
		"ssh-port": p.SSHPort,
	}
	optional := map[string]string{
		"infra-base-url": p.InfraBaseURL,
		"api-user":       p.APIUser,
		"api-key":        p.APIKey,
		"hostname":       p.Hostname,
		"ssh-key-file":   p.SSHKeyFile,
		"ssh-password":   p.SSHPassword,
	}
	for k, v := range optional {
		if v != "" {
			attrs[k] = v
		}
	}
	return attrs
}

// Validate checks the profile is usable.
func (p Profile) Validate() error {
	if p.Name == "" {
		return errors.NotValidf("empty profile name")
	}
	if strings.ContainsAny(p.Name, "/\\ ") {
		return errors.NotValidf("profile name %q", p.Name)
	}
	switch p.Type {
	case APIType:
		if p.InfraBaseURL == "" {
			return errors.NotValidf("api profile %q without infra-base-url", p.Name)
		}
		if p.APIUser == "" {
			return errors.NotValidf("api profile %q without api-user", p.Name)
		}
	case ServerType:
		if p.Hostname == "" {
			return errors.NotValidf("server profile %q without hostname", p.Name)
		}
	default:
		return errors.NotValidf("profile type %q", p.Type)
	}
	if p.SSHPort < 0 || p.SSHPort > 65535 {
		return errors.NotValidf("ssh-port %d", p.SSHPort)
	}
	return nil
}

// GraphConfig returns the configuration of a client for the resource
// graph the profile points to.
func (p Profile) GraphConfig() (graph.Config, error) {
	if p.Type != APIType {
		return graph.Config{}, errors.NotValidf("profile %q of type %q for the resource graph", p.Name, p.Type)
	}
	return graph.Config{
		BaseURL: p.InfraBaseURL,
		User:    p.APIUser,
		Key:     p.APIKey,
	}, nil
}

// Login returns the ssh login for a machine of the infrastructure.
func (p Profile) Login(host string) ssh.Login {
	user := p.SSHUser
	if user == "" {
		user = DefaultSSHUser
	}
	port := p.SSHPort
	if port == 0 {
		port = DefaultSSHPort
	}
	return ssh.Login{
		Host: host,
		Port: port,
		User: user,
		Credential: ssh.Credential{
			PrivateKeyFile: p.SSHKeyFile,
			Password:       p.SSHPassword,
		},
	}
}

// LoginFunc adapts Login to ssh.LoginFunc. Server profiles only reach
// their own host.
func (p Profile) LoginFunc() ssh.LoginFunc {
	return func(machine string) (ssh.Login, error) {
		if p.Type == ServerType && machine != p.Hostname {
			return ssh.Login{}, errors.NotValidf("machine %q for server profile %q", machine, p.Name)
		}
		return p.Login(machine), nil
	}
}

// Pair is the source and target profiles of an operation. It is
// passed explicitly to everything that needs it.
type Pair struct {
	Source Profile
	Target Profile
}

// SameBackend reports whether both profiles point to the same resource
// graph.
func (p Pair) SameBackend() bool {
	return p.Source.Type == APIType && p.Target.Type == APIType &&
		strings.TrimSuffix(p.Source.InfraBaseURL, "/") == strings.TrimSuffix(p.Target.InfraBaseURL, "/")
}
