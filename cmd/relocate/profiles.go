// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"strconv"

	"github.com/juju/ansiterm"
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/relocate/profile"
)

const addProfileDoc = `
Saves a named profile describing how to reach an infrastructure,
replacing any profile with the same name.

An api profile points to the resource graph of an infrastructure and
needs --infra-base-url and --api-user. A server profile reaches a
single machine and needs --hostname.

Profiles are stored in $RELOCATE_DATA, which defaults to
$XDG_DATA_HOME/relocate/profiles.yaml.
`

const addProfileExamples = `
    relocate add-profile prod --infra-base-url https://infra.example.com --api-user admin --api-key s3cr3t
    relocate add-profile legacy --type server --hostname old.example.com --ssh-key-file ~/.ssh/id_ed25519
`

type addProfileCommand struct {
	cmd.CommandBase
	env *environ

	profile profile.Profile
	kind    string
}

func newAddProfileCommand(env *environ) cmd.Command {
	return &addProfileCommand{env: env}
}

// Info implements cmd.Command.
func (c *addProfileCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "add-profile",
		Args:     "<name>",
		Purpose:  "Save a connection profile.",
		Doc:      addProfileDoc,
		Examples: addProfileExamples,
		SeeAlso:  []string{"profiles"},
	}
}

// SetFlags implements cmd.Command.
func (c *addProfileCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.kind, "type", string(profile.APIType), "Profile type, api or server")
	f.StringVar(&c.profile.InfraBaseURL, "infra-base-url", "", "Root URL of the resource graph")
	f.StringVar(&c.profile.APIUser, "api-user", "", "User of the resource graph API")
	f.StringVar(&c.profile.APIKey, "api-key", "", "Key of the resource graph API")
	f.StringVar(&c.profile.Hostname, "hostname", "", "Host of a server profile")
	f.StringVar(&c.profile.SSHUser, "ssh-user", profile.DefaultSSHUser, "SSH user on the machines")
	f.IntVar(&c.profile.SSHPort, "ssh-port", profile.DefaultSSHPort, "SSH port of the machines")
	f.StringVar(&c.profile.SSHKeyFile, "ssh-key-file", "", "Private key used to log in the machines")
	f.StringVar(&c.profile.SSHPassword, "ssh-password", "", "Password used to log in the machines")
}

// Init implements cmd.Command.
func (c *addProfileCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("expected a profile name")
	}
	c.profile.Name = args[0]
	c.profile.Type = profile.Type(c.kind)
	if err := c.profile.Validate(); err != nil {
		return errors.Trace(err)
	}
	return cmd.CheckEmpty(args[1:])
}

// Run implements cmd.Command.
func (c *addProfileCommand) Run(ctx *cmd.Context) error {
	if err := c.env.store.Put(c.profile); err != nil {
		return errors.Trace(err)
	}
	ctx.Infof("Profile %q saved", c.profile.Name)
	return nil
}

type profilesCommand struct {
	cmd.CommandBase
	env *environ
}

func newProfilesCommand(env *environ) cmd.Command {
	return &profilesCommand{env: env}
}

// Info implements cmd.Command.
func (c *profilesCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "profiles",
		Purpose: "List the saved connection profiles.",
		Aliases: []string{"list-profiles"},
		SeeAlso: []string{"add-profile"},
	}
}

// Init implements cmd.Command.
func (c *profilesCommand) Init(args []string) error {
	return cmd.CheckEmpty(args)
}

// Run implements cmd.Command.
func (c *profilesCommand) Run(ctx *cmd.Context) error {
	profiles, err := c.env.store.List()
	if err != nil {
		return errors.Trace(err)
	}
	if len(profiles) == 0 {
		ctx.Infof("No profiles, see add-profile")
		return nil
	}
	tw := ansiterm.NewTabWriter(ctx.Stdout, 0, 1, 2, ' ', 0)
	fmt.Fprintln(tw, "Name\tType\tEndpoint\tSSH")
	for _, p := range profiles {
		endpoint := p.InfraBaseURL
		if p.Type == profile.ServerType {
			endpoint = p.Hostname
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Type, endpoint, p.SSHUser+":"+strconv.Itoa(p.SSHPort))
	}
	return errors.Trace(tw.Flush())
}
