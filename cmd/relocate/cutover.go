// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"time"

	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/relocate/api/graph"
	"github.com/juju/relocate/core/progress"
	"github.com/juju/relocate/cutover"
	"github.com/juju/relocate/evacuate"
	"github.com/juju/relocate/migration"
)

const cutoverDomainDoc = `
Moves the websites and URL redirections of domains to the machines
running the applications they point to.

The new machines start serving the websites at once. The old machines
keep serving them without DNS until the finalize, which runs after the
finalize delay and removes them. Hitting Ctrl-C cancels the pending
finalizes; running the command again resumes them.

--target-machine is only used by domains whose websites point to no
application.

With --no-wait the command returns after the first phase without
finalizing; the old machines stay installed without DNS until the
command is run again.
`

const cutoverDomainExamples = `
    relocate cutover-domain example.com
    relocate cutover-domain --finalize-delay 1m example.com example.org
    relocate cutover-domain --target-machine web-02 redirects.example.com
`

// cutoverCommand is embedded by the commands scheduling finalizes.
type cutoverCommand struct {
	profileCommand

	finalizeDelay time.Duration
}

// SetFlags implements cmd.Command.
func (c *cutoverCommand) SetFlags(f *gnuflag.FlagSet) {
	c.profileCommand.SetFlags(f)
	f.DurationVar(&c.finalizeDelay, "finalize-delay", cutover.DefaultFinalizeDelay, "Time the old machines keep serving the websites")
}

func (c *cutoverCommand) validateDelay() error {
	if c.finalizeDelay < 0 {
		return errors.NotValidf("negative finalize delay")
	}
	return nil
}

func (c *cutoverCommand) newOrchestrator(g graph.Client, out progress.Output, registry *cutover.Registry, metrics *cutover.Collector) (*cutover.Orchestrator, error) {
	return cutover.NewOrchestrator(cutover.Config{
		Graph:         g,
		Clock:         c.env.clock,
		Output:        out,
		Registry:      registry,
		FinalizeDelay: c.finalizeDelay,
		Metrics:       metrics,
	})
}

type cutoverDomainCommand struct {
	cutoverCommand

	domains       []string
	targetMachine string
	noWait        bool
}

func newCutoverDomainCommand(env *environ) cmd.Command {
	return &cutoverDomainCommand{cutoverCommand: cutoverCommand{profileCommand: profileCommand{env: env}}}
}

// Info implements cmd.Command.
func (c *cutoverDomainCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "cutover-domain",
		Args:     "<domain> ...",
		Purpose:  "Move the websites of domains to the machines of their applications.",
		Doc:      cutoverDomainDoc,
		Examples: cutoverDomainExamples,
		SeeAlso:  []string{"move-machine", "check-websites"},
	}
}

// SetFlags implements cmd.Command.
func (c *cutoverDomainCommand) SetFlags(f *gnuflag.FlagSet) {
	c.cutoverCommand.SetFlags(f)
	f.StringVar(&c.targetMachine, "target-machine", "", "Machine for domains without application")
	f.BoolVar(&c.noWait, "no-wait", false, "Return without finalizing")
}

// Init implements cmd.Command.
func (c *cutoverDomainCommand) Init(args []string) error {
	if len(args) == 0 {
		return errors.New("expected at least one domain")
	}
	c.domains = args
	return c.validateDelay()
}

// Run implements cmd.Command.
func (c *cutoverDomainCommand) Run(ctx *cmd.Context) error {
	g, err := c.sourceGraph()
	if err != nil {
		return errors.Trace(err)
	}
	registry, err := cutover.NewRegistry()
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		registry.Kill()
		if err := registry.Wait(); err != nil {
			logger.Errorf("stopping finalizes: %v", err)
		}
	}()

	out := output(ctx)
	metrics := cutover.NewMetricsCollector()
	orchestrator, err := c.newOrchestrator(g, out, registry, metrics)
	if err != nil {
		return errors.Trace(err)
	}
	stdCtx, stop := interruptible(ctx, registry.Kill)
	defer stop()

	var failed int
	status := make(map[string]string)
	for _, domain := range c.domains {
		if _, err := orchestrator.Cutover(stdCtx, domain, c.targetMachine); err != nil {
			out.Infof("[ERROR] %v", err)
			status[domain] = "ERROR - " + err.Error()
			failed++
			continue
		}
		status[domain] = migration.StatusOK
	}

	if c.noWait {
		out.Infof("Not waiting for the finalize, run the command again to finalize")
	} else {
		for _, f := range registry.WaitAll() {
			if err := f.Err(); err != nil {
				status[f.Domain()] = "ERROR - finalize: " + err.Error()
				failed++
			}
		}
	}

	if merr := c.writeMetrics(metrics); merr != nil {
		logger.Errorf("%v", merr)
	}
	out.Infof("\n---[ Summary ]---")
	for _, domain := range c.domains {
		out.Infof("[%s] %s", status[domain], domain)
	}
	return summaryError(failed)
}

const moveMachineDoc = `
Moves everything off the source machine: every Unix account and its
applications first, whatever the failures, then the websites of every
domain served from the source machine. The command waits for the
finalizes and lists what is still installed on the source machine.

There is no rollback.
`

type moveMachineCommand struct {
	cutoverCommand

	from string
	to   string
}

func newMoveMachineCommand(env *environ) cmd.Command {
	return &moveMachineCommand{cutoverCommand: cutoverCommand{profileCommand: profileCommand{env: env, withTarget: true}}}
}

// Info implements cmd.Command.
func (c *moveMachineCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "move-machine",
		Args:    "<source-machine> <target-machine>",
		Purpose: "Move everything installed on a machine to another machine.",
		Doc:     moveMachineDoc,
		SeeAlso: []string{"move-all-accounts", "cutover-domain", "machine-resources"},
	}
}

// Init implements cmd.Command.
func (c *moveMachineCommand) Init(args []string) error {
	if len(args) < 2 {
		return errors.New("expected a source machine and a target machine")
	}
	c.from, c.to = args[0], args[1]
	if c.from == c.to {
		return errors.Errorf("source and target machine are both %q", c.from)
	}
	if err := c.validateDelay(); err != nil {
		return errors.Trace(err)
	}
	return cmd.CheckEmpty(args[2:])
}

// Run implements cmd.Command.
func (c *moveMachineCommand) Run(ctx *cmd.Context) error {
	pair, err := c.pair()
	if err != nil {
		return errors.Trace(err)
	}
	g, err := c.env.newGraph(pair.Source)
	if err != nil {
		return errors.Trace(err)
	}
	registry, err := cutover.NewRegistry()
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		registry.Kill()
		if err := registry.Wait(); err != nil {
			logger.Errorf("stopping finalizes: %v", err)
		}
	}()

	out := output(ctx)
	migrationMetrics := migration.NewMetricsCollector()
	cutoverMetrics := cutover.NewMetricsCollector()
	migrator, err := c.newMigrator(pair, g, out, migrationMetrics)
	if err != nil {
		return errors.Trace(err)
	}
	orchestrator, err := c.newOrchestrator(g, out, registry, cutoverMetrics)
	if err != nil {
		return errors.Trace(err)
	}
	evacuator, err := evacuate.NewEvacuator(evacuate.Config{
		Graph:    g,
		Accounts: migrator,
		Cutover:  orchestrator,
		Output:   out,
	})
	if err != nil {
		return errors.Trace(err)
	}

	stdCtx, stop := interruptible(ctx, registry.Kill)
	defer stop()
	report, err := evacuator.MoveAllFromMachine(stdCtx, pair, c.from, c.to)
	if merr := c.writeMetrics(migrationMetrics, cutoverMetrics); merr != nil {
		logger.Errorf("%v", merr)
	}
	if err != nil {
		return errors.Trace(err)
	}
	failed := len(report.Accounts.Failed())
	for _, d := range report.Domains {
		if d.Err != nil {
			failed++
		}
	}
	return summaryError(failed)
}
