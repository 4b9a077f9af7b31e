// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/relocate/check"
	"github.com/juju/relocate/inventory"
	"github.com/juju/relocate/owner"
)

const machineResourcesDoc = `
Lists the resources installed on a machine, including the websites it
still serves without DNS, grouped by the Unix account they run as.
Resources running as no account are listed under N/A.
`

type machineResourcesCommand struct {
	profileCommand

	machine string
}

func newMachineResourcesCommand(env *environ) cmd.Command {
	return &machineResourcesCommand{profileCommand: profileCommand{env: env}}
}

// Info implements cmd.Command.
func (c *machineResourcesCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "machine-resources",
		Args:    "<machine>",
		Purpose: "List what is installed on a machine.",
		Doc:     machineResourcesDoc,
		SeeAlso: []string{"move-machine"},
	}
}

// Init implements cmd.Command.
func (c *machineResourcesCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("expected a machine")
	}
	c.machine = args[0]
	return cmd.CheckEmpty(args[1:])
}

// Run implements cmd.Command.
func (c *machineResourcesCommand) Run(ctx *cmd.Context) error {
	g, err := c.sourceGraph()
	if err != nil {
		return errors.Trace(err)
	}
	inv, err := inventory.List(ctx, g, c.machine, inventory.DefaultConcurrency)
	if err != nil {
		return errors.Trace(err)
	}
	out := output(ctx)
	if inv.IsEmpty() {
		out.Infof("Nothing installed on %s", c.machine)
		return nil
	}
	inv.Print(out)
	return nil
}

const checkWebsitesDoc = `
Requests every domain name of every website installed on a machine and
reports the ones that do not answer with 200, 301, 302 or 401.
Redirects are not followed. Failures are listed first.
`

type checkWebsitesCommand struct {
	profileCommand
}

func newCheckWebsitesCommand(env *environ) cmd.Command {
	return &checkWebsitesCommand{profileCommand: profileCommand{env: env}}
}

// Info implements cmd.Command.
func (c *checkWebsitesCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "check-websites",
		Purpose: "Check that the installed websites answer.",
		Doc:     checkWebsitesDoc,
		SeeAlso: []string{"cutover-domain"},
	}
}

// Init implements cmd.Command.
func (c *checkWebsitesCommand) Init(args []string) error {
	return cmd.CheckEmpty(args)
}

// Run implements cmd.Command.
func (c *checkWebsitesCommand) Run(ctx *cmd.Context) error {
	g, err := c.sourceGraph()
	if err != nil {
		return errors.Trace(err)
	}
	checker, err := check.NewChecker(check.Config{
		Clock: c.env.clock,
		Doer:  c.env.doer,
	})
	if err != nil {
		return errors.Trace(err)
	}
	stdCtx, stop := interruptible(ctx, nil)
	defer stop()
	results, err := checker.CheckInstalledWebsites(stdCtx, g)
	if err != nil {
		return errors.Trace(err)
	}
	check.Print(output(ctx), results)

	var failed int
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	return summaryError(failed)
}

const changeOwnerDoc = `
Gives the resources whose name matches every given filter to a new
owner. At least one filter is needed. Resources already owned by the
new owner are left alone, the others are updated in batches.
`

const changeOwnerExamples = `
    relocate change-owner --owner alice --name-ends-with .example.com
    relocate change-owner --owner bob --name-starts-with bob- --name-contains prod
`

type changeOwnerCommand struct {
	profileCommand

	owner  string
	filter owner.Filter
}

func newChangeOwnerCommand(env *environ) cmd.Command {
	return &changeOwnerCommand{profileCommand: profileCommand{env: env}}
}

// Info implements cmd.Command.
func (c *changeOwnerCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "change-owner",
		Purpose:  "Change the owner of resources selected by name.",
		Doc:      changeOwnerDoc,
		Examples: changeOwnerExamples,
	}
}

// SetFlags implements cmd.Command.
func (c *changeOwnerCommand) SetFlags(f *gnuflag.FlagSet) {
	c.profileCommand.SetFlags(f)
	f.StringVar(&c.owner, "owner", "", "The new owner")
	f.StringVar(&c.filter.NameStartsWith, "name-starts-with", "", "Select names starting with this prefix")
	f.StringVar(&c.filter.NameContains, "name-contains", "", "Select names containing this text")
	f.StringVar(&c.filter.NameEndsWith, "name-ends-with", "", "Select names ending with this suffix")
}

// Init implements cmd.Command.
func (c *changeOwnerCommand) Init(args []string) error {
	if c.owner == "" {
		return errors.New("--owner is required")
	}
	if err := c.filter.Validate(); err != nil {
		return errors.Trace(err)
	}
	return cmd.CheckEmpty(args)
}

// Run implements cmd.Command.
func (c *changeOwnerCommand) Run(ctx *cmd.Context) error {
	g, err := c.sourceGraph()
	if err != nil {
		return errors.Trace(err)
	}
	out := output(ctx)
	changer, err := owner.NewChanger(owner.Config{
		Graph:  g,
		Output: out,
	})
	if err != nil {
		return errors.Trace(err)
	}
	updated, err := changer.Change(ctx, c.filter, c.owner)
	if err != nil {
		return errors.Annotatef(err, "%d resources updated", updated)
	}
	out.Infof("%d resources updated", updated)
	return nil
}
