// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"os"
	"time"

	"github.com/juju/clock"
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/httprequest.v1"

	"github.com/juju/relocate/api/graph"
	"github.com/juju/relocate/core/progress"
	"github.com/juju/relocate/internal/ssh"
	"github.com/juju/relocate/migration"
	"github.com/juju/relocate/profile"
)

const (
	// ProfileEnvKey names the profile used when --source or --target
	// is not given.
	ProfileEnvKey = "RELOCATE_PROFILE"

	// LoggingConfigEnvKey holds the default logging configuration.
	LoggingConfigEnvKey = "RELOCATE_LOGGING_CONFIG"

	dialTimeout = 30 * time.Second
)

// environ is how the commands reach the outside world.
type environ struct {
	store     *profile.Store
	clock     clock.Clock
	newGraph  func(profile.Profile) (graph.Client, error)
	newRemote func(profile.Pair) (migration.Remote, error)

	// doer sends the website checks, nil for the default client.
	doer httprequest.Doer
}

func defaultEnviron() *environ {
	return &environ{
		store:     profile.NewStore(profile.DefaultPath()),
		clock:     clock.WallClock,
		newGraph:  newGraphClient,
		newRemote: newRemote,
	}
}

func newGraphClient(p profile.Profile) (graph.Client, error) {
	config, err := p.GraphConfig()
	if err != nil {
		return nil, errors.Trace(err)
	}
	client, err := graph.NewClient(config)
	if err != nil {
		return nil, errors.Annotatef(err, "resource graph of profile %q", p.Name)
	}
	return client, nil
}

func newRemote(pair profile.Pair) (migration.Remote, error) {
	remote, err := ssh.NewRemote(ssh.Config{
		Dialer:      ssh.NewDialer(dialTimeout),
		Clock:       clock.WallClock,
		SourceLogin: pair.Source.LoginFunc(),
		TargetLogin: pair.Target.LoginFunc(),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return remote, nil
}

// profileCommand is embedded by the commands working on
// infrastructures described by profiles.
type profileCommand struct {
	cmd.CommandBase
	env *environ

	sourceProfile string
	targetProfile string
	metricsFile   string

	// withTarget is set by commands that touch a target
	// infrastructure.
	withTarget bool
}

// SetFlags implements cmd.Command.
func (c *profileCommand) SetFlags(f *gnuflag.FlagSet) {
	def := os.Getenv(ProfileEnvKey)
	f.StringVar(&c.sourceProfile, "source", def, "Profile of the source infrastructure")
	if c.withTarget {
		f.StringVar(&c.targetProfile, "target", def, "Profile of the target infrastructure")
	}
	f.StringVar(&c.metricsFile, "metrics-file", "", "Write metrics to this node exporter textfile")
}

func (c *profileCommand) source() (profile.Profile, error) {
	if c.sourceProfile == "" {
		return profile.Profile{}, errors.Errorf("no source profile: use --source or set %s", ProfileEnvKey)
	}
	p, err := c.env.store.Get(c.sourceProfile)
	return p, errors.Trace(err)
}

func (c *profileCommand) pair() (profile.Pair, error) {
	if c.sourceProfile == "" || c.targetProfile == "" {
		return profile.Pair{}, errors.Errorf("no source or target profile: use --source and --target or set %s", ProfileEnvKey)
	}
	pair, err := c.env.store.Pair(c.sourceProfile, c.targetProfile)
	return pair, errors.Trace(err)
}

// sourceGraph returns the client of the resource graph of the source
// profile. Operations between two infrastructures record their changes
// there.
func (c *profileCommand) sourceGraph() (graph.Client, error) {
	p, err := c.source()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return c.env.newGraph(p)
}

func (c *profileCommand) newMigrator(pair profile.Pair, g graph.Client, out progress.Output, metrics *migration.Collector) (*migration.Migrator, error) {
	remote, err := c.env.newRemote(pair)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return migration.NewMigrator(migration.Config{
		Graph:   g,
		Remote:  remote,
		Clock:   c.env.clock,
		Output:  out,
		Metrics: metrics,
	})
}

// writeMetrics saves the collectors to the metrics file, if any.
func (c *profileCommand) writeMetrics(collectors ...prometheus.Collector) error {
	if c.metricsFile == "" {
		return nil
	}
	registry := prometheus.NewRegistry()
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Annotate(prometheus.WriteToTextfile(c.metricsFile, registry), "writing metrics")
}

func output(ctx *cmd.Context) progress.Output {
	return progress.NewWriter(ctx.Stdout)
}

// interruptible returns a context cancelled when the operator hits
// Ctrl-C. onInterrupt, if not nil, runs on the first interrupt.
func interruptible(ctx *cmd.Context, onInterrupt func()) (context.Context, func()) {
	stdCtx, cancel := context.WithCancel(ctx)
	interrupted := make(chan os.Signal, 1)
	ctx.InterruptNotify(interrupted)
	go func() {
		select {
		case <-interrupted:
			logger.Warningf("interrupted, stopping")
			if onInterrupt != nil {
				onInterrupt()
			}
			cancel()
		case <-stdCtx.Done():
		}
	}()
	return stdCtx, func() {
		ctx.StopInterruptNotify(interrupted)
		cancel()
	}
}

// summaryError returns cmd.ErrSilent when some items failed: the
// failures were already reported in the summary.
func summaryError(failed int) error {
	if failed > 0 {
		return cmd.ErrSilent
	}
	return nil
}
