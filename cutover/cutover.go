// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package cutover moves the websites and redirections of a domain to
// the machines running their applications, without ever leaving the
// domain unserved while DNS caches still point to the old machines.
//
// A cutover happens in two phases. The first one, run by Cutover,
// installs the websites on the new machines and keeps the old machines
// serving them without DNS advertisement (INSTALLED_ON_NO_DNS). The
// second one, run by a Finalizer once the finalize delay has passed,
// removes the old machines and moves the redirections.
package cutover

import (
	"context"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/juju/relocate/api/graph"
	"github.com/juju/relocate/core/changes"
	"github.com/juju/relocate/core/progress"
)

var logger = loggo.GetLogger("relocate.cutover")

// DefaultFinalizeDelay leaves DNS caches the time to expire before the
// old machines stop serving a domain.
const DefaultFinalizeDelay = 10 * time.Minute

// Config holds the dependencies of an Orchestrator.
type Config struct {
	Graph    graph.Client
	Clock    clock.Clock
	Output   progress.Output
	Registry *Registry

	// FinalizeDelay is the time between the two phases of a cutover.
	// DefaultFinalizeDelay is used when it is zero.
	FinalizeDelay time.Duration

	// Metrics is optional.
	Metrics *Collector
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Graph == nil {
		return errors.NotValidf("nil Graph")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Output == nil {
		return errors.NotValidf("nil Output")
	}
	if c.Registry == nil {
		return errors.NotValidf("nil Registry")
	}
	if c.FinalizeDelay < 0 {
		return errors.NotValidf("negative FinalizeDelay")
	}
	return nil
}

// Orchestrator runs domain cutovers.
type Orchestrator struct {
	config Config
}

// NewOrchestrator returns an Orchestrator for the configuration.
func NewOrchestrator(config Config) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.FinalizeDelay == 0 {
		config.FinalizeDelay = DefaultFinalizeDelay
	}
	return &Orchestrator{config: config}, nil
}

// Cutover runs the first phase of the cutover of the domain and starts
// the finalizer running the second one. The finalizer is tracked by
// the registry, replacing any finalizer still pending for the domain.
//
// targetMachine is where the domain goes when none of its websites
// points to an application; it is ignored otherwise.
func (o *Orchestrator) Cutover(ctx context.Context, domainName, targetMachine string) (_ *Finalizer, err error) {
	defer func() { o.config.Metrics.cutoverDone(err) }()

	out := o.config.Output
	plan, err := ResolvePlan(ctx, o.config.Graph, domainName, targetMachine)
	if err != nil {
		return nil, errors.Trace(err)
	}
	out.Infof("Cutover of domain %s to %s", domainName, strings.Join(plan.Desired.SortedValues(), ", "))

	var ch changes.Changes
	for _, website := range plan.Websites {
		wc, ok := WebsiteChanges(website, plan.Desired)
		if !ok {
			out.Infof("\t[SKIP] Website %s is already installed on the desired machines", website.Resource.Name)
			continue
		}
		ch.Merge(wc)
	}
	if ch.IsEmpty() {
		out.Infof("\tNothing to change before the finalize")
	} else {
		description := "Install the websites of " + domainName + " on the new machines"
		if err := changes.Apply(ctx, o.config.Graph, progress.Indent(out, 1), description, ch); err != nil {
			return nil, errors.Trace(err)
		}
	}

	f, err := newFinalizer(finalizerParams{
		domain:  domainName,
		plan:    plan,
		graph:   o.config.Graph,
		clock:   o.config.Clock,
		delay:   o.config.FinalizeDelay,
		out:     out,
		metrics: o.config.Metrics,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := o.config.Registry.Track(f); err != nil {
		return nil, errors.Annotatef(err, "tracking finalize of %q", domainName)
	}
	out.Infof("\tFinalize scheduled in %v", o.config.FinalizeDelay)
	return f, nil
}
