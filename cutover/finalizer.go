// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cutover

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"

	"github.com/juju/relocate/api/graph"
	"github.com/juju/relocate/core/changes"
	"github.com/juju/relocate/core/progress"
)

type finalizerParams struct {
	domain  string
	plan    Plan
	graph   graph.Client
	clock   clock.Clock
	delay   time.Duration
	out     progress.Output
	metrics *Collector
}

// Finalizer is a worker running the second phase of the cutover of a
// domain once the finalize delay has passed. It never fails: errors are
// logged and kept for Err, and Wait returns nil.
type Finalizer struct {
	catacomb catacomb.Catacomb
	params   finalizerParams

	mu   sync.Mutex
	err  error
	done bool
}

func newFinalizer(params finalizerParams) (*Finalizer, error) {
	f := &Finalizer{params: params}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &f.catacomb,
		Work: f.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return f, nil
}

// Domain returns the name of the domain being cut over.
func (f *Finalizer) Domain() string {
	return f.params.domain
}

// Err returns why the finalize did not complete. It is only meaningful
// once Wait has returned.
func (f *Finalizer) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Done reports whether the finalize ran to completion.
func (f *Finalizer) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Kill is part of the worker.Worker interface. Killing a finalizer
// before its delay expired cancels the finalize.
func (f *Finalizer) Kill() {
	f.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (f *Finalizer) Wait() error {
	return f.catacomb.Wait()
}

func (f *Finalizer) loop() error {
	domain := f.params.domain
	select {
	case <-f.catacomb.Dying():
		logger.Infof("finalize of %s cancelled", domain)
		f.finish(errors.Annotatef(ErrFinalizeCancelled, "%q", domain))
		return f.catacomb.ErrDying()
	case <-f.params.clock.After(f.params.delay):
	}

	ctx, cancel := f.scopedContext()
	defer cancel()
	err := f.finalize(ctx)
	if err != nil {
		logger.Warningf("finalize of %s failed: %v", domain, err)
	}
	f.finish(err)
	return nil
}

func (f *Finalizer) finish(err error) {
	f.mu.Lock()
	f.err = err
	f.done = err == nil
	f.mu.Unlock()
	f.params.metrics.finalizeDone(err)
}

// finalize re-reads the websites and redirections, since they may have
// changed during the delay.
func (f *Finalizer) finalize(ctx context.Context) error {
	p := f.params
	p.out.Infof("Finalize the cutover of domain %s", p.domain)

	var ch changes.Changes
	for _, website := range p.plan.Websites {
		b, err := p.graph.FindByID(ctx, website.Resource.ID)
		if err != nil {
			return errors.Annotatef(err, "finding website %q", website.Resource.Name)
		}
		ch.Merge(NoDNSChanges(b))
	}
	for _, redirection := range p.plan.Redirections {
		b, err := p.graph.FindByID(ctx, redirection.ID)
		if err != nil {
			return errors.Annotatef(err, "finding redirection %q", redirection.Name)
		}
		ch.Merge(RedirectionChanges(b, p.plan.Desired))
	}
	if ch.IsEmpty() {
		p.out.Infof("\tNothing to change")
		return nil
	}
	description := "Finalize the cutover of " + p.domain
	return changes.Apply(ctx, p.graph, progress.Indent(p.out, 1), description, ch)
}

func (f *Finalizer) scopedContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(f.catacomb.Context(context.Background()))
}
