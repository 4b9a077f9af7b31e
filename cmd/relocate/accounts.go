// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/relocate/migration"
)

const moveAccountDoc = `
Moves a Unix account, and every application running as it, from the
source machine to the target machine.

The account is checked first: its applications must all be installed
on the source machine, each managed by exactly one manager. Nothing is
changed when the check fails. The applications are stopped on the
source machine between the two file synchronisations, and the source
copy is left in place.
`

const moveAccountExamples = `
    relocate move-account bob web-01 web-02
    relocate move-account --source old --target new bob web-01 web-02
`

type moveAccountCommand struct {
	profileCommand

	account string
	from    string
	to      string
}

func newMoveAccountCommand(env *environ) cmd.Command {
	return &moveAccountCommand{profileCommand: profileCommand{env: env, withTarget: true}}
}

// Info implements cmd.Command.
func (c *moveAccountCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "move-account",
		Args:     "<account> <source-machine> <target-machine>",
		Purpose:  "Move a Unix account and its applications to another machine.",
		Doc:      moveAccountDoc,
		Examples: moveAccountExamples,
		SeeAlso:  []string{"move-all-accounts", "move-machine"},
	}
}

// SetFlags implements cmd.Command.
func (c *moveAccountCommand) SetFlags(f *gnuflag.FlagSet) {
	c.profileCommand.SetFlags(f)
}

// Init implements cmd.Command.
func (c *moveAccountCommand) Init(args []string) error {
	if len(args) < 3 {
		return errors.New("expected an account, a source machine and a target machine")
	}
	c.account, c.from, c.to = args[0], args[1], args[2]
	if c.from == c.to {
		return errors.Errorf("source and target machine are both %q", c.from)
	}
	return cmd.CheckEmpty(args[3:])
}

// Run implements cmd.Command.
func (c *moveAccountCommand) Run(ctx *cmd.Context) error {
	pair, err := c.pair()
	if err != nil {
		return errors.Trace(err)
	}
	g, err := c.env.newGraph(pair.Source)
	if err != nil {
		return errors.Trace(err)
	}
	out := output(ctx)
	metrics := migration.NewMetricsCollector()
	migrator, err := c.newMigrator(pair, g, out, metrics)
	if err != nil {
		return errors.Trace(err)
	}

	stdCtx, stop := interruptible(ctx, nil)
	defer stop()
	err = migrator.MigrateAccount(stdCtx, pair, c.from, c.to, c.account)
	if merr := c.writeMetrics(metrics); merr != nil {
		logger.Errorf("%v", merr)
	}
	if err != nil {
		out.Infof("[ERROR - %v] %s", err, c.account)
		return cmd.ErrSilent
	}
	out.Infof("[%s] %s", migration.StatusOK, c.account)
	return nil
}

const moveAllAccountsDoc = `
Moves every Unix account installed on the source machine, one after
the other in name order. A failing account is reported and the next
one is processed, unless --stop-on-failure is given.
`

type moveAllAccountsCommand struct {
	profileCommand

	from          string
	to            string
	stopOnFailure bool
}

func newMoveAllAccountsCommand(env *environ) cmd.Command {
	return &moveAllAccountsCommand{profileCommand: profileCommand{env: env, withTarget: true}}
}

// Info implements cmd.Command.
func (c *moveAllAccountsCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "move-all-accounts",
		Args:    "<source-machine> <target-machine>",
		Purpose: "Move every Unix account of a machine to another machine.",
		Doc:     moveAllAccountsDoc,
		SeeAlso: []string{"move-account", "move-machine"},
	}
}

// SetFlags implements cmd.Command.
func (c *moveAllAccountsCommand) SetFlags(f *gnuflag.FlagSet) {
	c.profileCommand.SetFlags(f)
	f.BoolVar(&c.stopOnFailure, "stop-on-failure", false, "Stop at the first account that fails")
}

// Init implements cmd.Command.
func (c *moveAllAccountsCommand) Init(args []string) error {
	if len(args) < 2 {
		return errors.New("expected a source machine and a target machine")
	}
	c.from, c.to = args[0], args[1]
	if c.from == c.to {
		return errors.Errorf("source and target machine are both %q", c.from)
	}
	return cmd.CheckEmpty(args[2:])
}

// Run implements cmd.Command.
func (c *moveAllAccountsCommand) Run(ctx *cmd.Context) error {
	pair, err := c.pair()
	if err != nil {
		return errors.Trace(err)
	}
	g, err := c.env.newGraph(pair.Source)
	if err != nil {
		return errors.Trace(err)
	}
	metrics := migration.NewMetricsCollector()
	migrator, err := c.newMigrator(pair, g, output(ctx), metrics)
	if err != nil {
		return errors.Trace(err)
	}

	stdCtx, stop := interruptible(ctx, nil)
	defer stop()
	report, err := migrator.MigrateAll(stdCtx, pair, c.from, c.to, c.stopOnFailure)
	if merr := c.writeMetrics(metrics); merr != nil {
		logger.Errorf("%v", merr)
	}
	if err != nil {
		return errors.Trace(err)
	}
	return summaryError(len(report.Failed()))
}
