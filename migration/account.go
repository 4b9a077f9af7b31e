// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package migration moves Unix accounts, and the applications running
// as them, from one machine to another.
package migration

import (
	"context"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/kballard/go-shellquote"

	"github.com/juju/relocate/api/graph"
	"github.com/juju/relocate/core/changes"
	"github.com/juju/relocate/core/progress"
	"github.com/juju/relocate/core/resource"
	"github.com/juju/relocate/internal/ssh"
	"github.com/juju/relocate/profile"
)

var logger = loggo.GetLogger("relocate.migration")

// StopCommand is the command stopping applications on a machine.
const StopCommand = "/usr/bin/docker"

// Remote runs commands and copies files on machines.
type Remote interface {
	Exec(ctx context.Context, side ssh.Side, machine, command string) (ssh.Result, error)
	WaitUserPresent(ctx context.Context, machine, user string) error
	SyncFiles(ctx context.Context, spec ssh.SyncSpec) error
}

// Config holds the dependencies of a Migrator.
type Config struct {
	Graph  graph.Client
	Remote Remote
	Clock  clock.Clock

	// Output receives the operator trace.
	Output progress.Output

	// Metrics is optional.
	Metrics *Collector
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Graph == nil {
		return errors.NotValidf("nil Graph")
	}
	if c.Remote == nil {
		return errors.NotValidf("nil Remote")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Output == nil {
		return errors.NotValidf("nil Output")
	}
	return nil
}

// Migrator moves accounts between machines.
type Migrator struct {
	config  Config
	checker *Checker
}

// NewMigrator returns a Migrator for the configuration.
func NewMigrator(config Config) (*Migrator, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Migrator{
		config:  config,
		checker: NewChecker(config.Graph, config.Output),
	}, nil
}

// StopApplicationsCommand returns the single command stopping all the
// named applications.
func StopApplicationsCommand(names []string) string {
	return shellquote.Join(append([]string{StopCommand, "stop"}, names...)...)
}

// MigrateAccount moves the account, and the applications running as it
// on the source machine, to the target machine. Eligibility is checked
// before anything is changed. Once changes started, a failure stops
// the migration where it is and is returned as a *StepError.
func (m *Migrator) MigrateAccount(ctx context.Context, pair profile.Pair, source, target, account string) (err error) {
	defer func() { m.config.Metrics.accountDone(err) }()

	eligibility, err := m.checker.Check(ctx, pair, source, account)
	if err != nil {
		return errors.Trace(err)
	}
	return m.migrate(ctx, eligibility, source, target)
}

type step struct {
	id          Step
	description string
	run         func(context.Context) error
}

func (m *Migrator) migrate(ctx context.Context, e Eligibility, source, target string) error {
	out := m.config.Output
	account := e.Account
	user, _ := account.Details.(resource.UnixUser)
	home := user.Home()
	sync := ssh.SyncSpec{
		SourceMachine: source,
		SourcePath:    home,
		TargetMachine: target,
		TargetPath:    home,
		Owner:         account.Name,
	}
	managers := e.Managers()
	appNames := e.ApplicationNames()

	steps := []step{{
		id:          StepInstallAccount,
		description: "Install the unix user on the target",
		run: func(ctx context.Context) error {
			var ch changes.Changes
			ch.AddLink(account, resource.InstalledOn, resource.MachineRef(target))
			return m.apply(ctx, "Install the unix user on the target", ch)
		},
	}, {
		id:          StepWaitAccount,
		description: "Wait for the unix user to be created on the target",
		run: func(ctx context.Context) error {
			return m.config.Remote.WaitUserPresent(ctx, target, account.Name)
		},
	}, {
		id:          StepFirstSync,
		description: "Do the first sync to get most of the files in the final state",
		run: func(ctx context.Context) error {
			return m.config.Remote.SyncFiles(ctx, sync)
		},
	}, {
		id:          StepUnlinkApplications,
		description: "Remove the applications from the source",
		run: func(ctx context.Context) error {
			var ch changes.Changes
			for _, manager := range managers {
				ch.DeleteLink(manager, resource.InstalledOn, resource.MachineRef(source))
			}
			return m.apply(ctx, "Remove the applications from the source", ch)
		},
	}, {
		id:          StepStopApplications,
		description: "Stop the applications on the source",
		run: func(ctx context.Context) error {
			if len(appNames) == 0 {
				out.Infof("\tNo application to stop")
				return nil
			}
			_, err := m.config.Remote.Exec(ctx, ssh.Source, source, StopApplicationsCommand(appNames))
			return err
		},
	}, {
		id:          StepFinalSync,
		description: "Do the last sync while the applications are down",
		run: func(ctx context.Context) error {
			return m.config.Remote.SyncFiles(ctx, sync)
		},
	}, {
		id:          StepInstallApplications,
		description: "Install the applications on the target",
		run: func(ctx context.Context) error {
			var ch changes.Changes
			for _, manager := range managers {
				ch.AddLink(manager, resource.InstalledOn, resource.MachineRef(target))
			}
			return m.apply(ctx, "Install the applications on the target", ch)
		},
	}, {
		id:          StepUnlinkAccount,
		description: "Remove the unix user from the source",
		run: func(ctx context.Context) error {
			var ch changes.Changes
			ch.DeleteLink(account, resource.InstalledOn, resource.MachineRef(source))
			return m.apply(ctx, "Remove the unix user from the source", ch)
		},
	}}

	lastCompleted := StepNone
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Account: account.Name, Step: s.id, LastCompleted: lastCompleted, Err: err}
		}
		out.Infof("%s", s.description)
		logger.Debugf("%s: starting %q", account.Name, s.id)
		start := m.config.Clock.Now()
		if err := s.run(ctx); err != nil {
			logger.Errorf("%s: %q failed: %v", account.Name, s.id, err)
			return &StepError{
				Account:       account.Name,
				Step:          s.id,
				LastCompleted: lastCompleted,
				Err:           errors.Trace(err),
			}
		}
		m.config.Metrics.stepDone(s.id, m.config.Clock.Now().Sub(start).Seconds())
		lastCompleted = s.id
	}
	logger.Infof("moved %s from %s to %s", account.Name, source, target)
	return nil
}

// apply applies the changes in owner batches. Empty changes are
// reported and succeed.
func (m *Migrator) apply(ctx context.Context, description string, ch changes.Changes) error {
	if ch.IsEmpty() {
		m.config.Output.Infof("\tNothing to change")
		return nil
	}
	return changes.Apply(ctx, m.config.Graph, progress.Indent(m.config.Output, 1), description, ch)
}
