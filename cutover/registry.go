// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cutover

import (
	"sort"
	"sync"

	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"
)

// Registry is a worker owning the finalizers of the cutovers, keyed by
// domain. Killing the registry cancels every pending finalize.
type Registry struct {
	catacomb catacomb.Catacomb

	mu         sync.Mutex
	finalizers map[string]*Finalizer
}

// NewRegistry returns a running Registry.
func NewRegistry() (*Registry, error) {
	r := &Registry{finalizers: make(map[string]*Finalizer)}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &r.catacomb,
		Work: r.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return r, nil
}

func (r *Registry) loop() error {
	<-r.catacomb.Dying()
	return r.catacomb.ErrDying()
}

// Kill is part of the worker.Worker interface.
func (r *Registry) Kill() {
	r.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (r *Registry) Wait() error {
	return r.catacomb.Wait()
}

// Track hands the finalizer over to the registry. A finalizer already
// tracked for the same domain is cancelled.
func (r *Registry) Track(f *Finalizer) error {
	r.mu.Lock()
	previous := r.finalizers[f.Domain()]
	r.finalizers[f.Domain()] = f
	r.mu.Unlock()

	if previous != nil && previous != f {
		logger.Infof("replacing pending finalize of %s", f.Domain())
		previous.Kill()
	}
	if err := r.catacomb.Add(f); err != nil {
		f.Kill()
		return errors.Trace(err)
	}
	return nil
}

// Get returns the finalizer tracked for the domain.
func (r *Registry) Get(domain string) (*Finalizer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.finalizers[domain]
	if !ok {
		return nil, errors.NotFoundf("finalize of %q", domain)
	}
	return f, nil
}

// Cancel aborts the pending finalize of the domain. Cancelling a
// finalize that already ran has no effect.
func (r *Registry) Cancel(domain string) error {
	f, err := r.Get(domain)
	if err != nil {
		return errors.Trace(err)
	}
	f.Kill()
	return nil
}

// WaitFor waits for the finalize of the domain and returns its error.
func (r *Registry) WaitFor(domain string) error {
	f, err := r.Get(domain)
	if err != nil {
		return errors.Trace(err)
	}
	if err := f.Wait(); err != nil {
		return errors.Trace(err)
	}
	return f.Err()
}

// WaitAll waits for every tracked finalizer and returns them sorted by
// domain.
func (r *Registry) WaitAll() []*Finalizer {
	r.mu.Lock()
	all := make([]*Finalizer, 0, len(r.finalizers))
	for _, f := range r.finalizers {
		all = append(all, f)
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].Domain() < all[j].Domain()
	})
	for _, f := range all {
		if err := f.Wait(); err != nil {
			logger.Errorf("finalize of %s: %v", f.Domain(), err)
		}
	}
	return all
}
