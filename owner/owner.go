// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package owner changes the owner of resources selected by name.
package owner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"golang.org/x/sync/errgroup"

	"github.com/juju/relocate/api/graph"
	"github.com/juju/relocate/core/changes"
	"github.com/juju/relocate/core/progress"
	"github.com/juju/relocate/core/resource"
)

var logger = loggo.GetLogger("relocate.owner")

// ErrNoFilter is returned when no name filter was given, which would
// select every resource.
const ErrNoFilter = errors.ConstError("at least one name filter is needed")

const (
	DefaultConcurrency = 5
	DefaultBatchSize   = 10
)

// DefaultTypes are the resource types scanned when none are given.
var DefaultTypes = []resource.Type{
	resource.MachineType,
	resource.UnixUserType,
	resource.ApplicationType,
	resource.WebsiteType,
	resource.URLRedirectionType,
	resource.DomainType,
	resource.ApachePHPType,
	resource.MariaDBServerType,
}

// Filter selects resources by name. Every non empty criterion must
// match.
type Filter struct {
	NameStartsWith string
	NameContains   string
	NameEndsWith   string
}

// Validate checks that the filter selects something less than
// everything.
func (f Filter) Validate() error {
	if f.NameStartsWith == "" && f.NameContains == "" && f.NameEndsWith == "" {
		return ErrNoFilter
	}
	return nil
}

// Matches reports whether the name is selected.
func (f Filter) Matches(name string) bool {
	return strings.HasPrefix(name, f.NameStartsWith) &&
		strings.Contains(name, f.NameContains) &&
		strings.HasSuffix(name, f.NameEndsWith)
}

// Config holds the dependencies of a Changer.
type Config struct {
	Graph  graph.Client
	Output progress.Output

	// Types defaults to DefaultTypes.
	Types []resource.Type

	// Concurrency is the number of types scanned at the same time.
	Concurrency int

	// BatchSize is the number of resources updated per transaction.
	BatchSize int
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Graph == nil {
		return errors.NotValidf("nil Graph")
	}
	if c.Output == nil {
		return errors.NotValidf("nil Output")
	}
	if c.Concurrency < 0 {
		return errors.NotValidf("negative Concurrency")
	}
	if c.BatchSize < 0 {
		return errors.NotValidf("negative BatchSize")
	}
	return nil
}

// Changer changes the owner of resources.
type Changer struct {
	config Config
}

// NewChanger returns a Changer for the configuration.
func NewChanger(config Config) (*Changer, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if len(config.Types) == 0 {
		config.Types = DefaultTypes
	}
	if config.Concurrency == 0 {
		config.Concurrency = DefaultConcurrency
	}
	if config.BatchSize == 0 {
		config.BatchSize = DefaultBatchSize
	}
	return &Changer{config: config}, nil
}

// Change gives every resource selected by the filter to the owner. It
// returns the number of resources updated. All the batches are tried;
// the first failure is returned.
func (c *Changer) Change(ctx context.Context, filter Filter, owner string) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, errors.Trace(err)
	}
	if owner == "" {
		return 0, errors.NotValidf("empty owner")
	}
	out := c.config.Output

	matches, err := c.scan(ctx, filter)
	if err != nil {
		return 0, errors.Trace(err)
	}

	var toUpdate []resource.Resource
	for _, r := range matches {
		out.Infof("\t%s (%s)", r.Name, r.ID)
		if r.Owner == owner {
			out.Infof("\t\t[SKIP] Owner is already %s", owner)
			continue
		}
		out.Infof("\t\t[CHANGE] Change owner %s -> %s", r.Owner, owner)
		toUpdate = append(toUpdate, r)
	}
	if len(toUpdate) == 0 {
		return 0, nil
	}

	size := c.config.BatchSize
	out.Infof("Request the update of %d resources in batches of %d", len(toUpdate), size)
	var (
		firstErr error
		updated  int
	)
	for start := 0; start < len(toUpdate); start += size {
		end := start + size
		if end > len(toUpdate) {
			end = len(toUpdate)
		}
		var ch changes.Changes
		for _, r := range toUpdate[start:end] {
			ch.UpdateResource(r, r.WithOwner(owner))
		}
		description := fmt.Sprintf("Applying update %d-%d", start+1, end)
		if err := changes.Apply(ctx, c.config.Graph, out, description, ch); err != nil {
			logger.Errorf("%v", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		updated += end - start
	}
	return updated, errors.Trace(firstErr)
}

// scan returns the resources selected by the filter, sorted by type
// then name.
func (c *Changer) scan(ctx context.Context, filter Filter) ([]resource.Resource, error) {
	var (
		mu      sync.Mutex
		matches []resource.Resource
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.config.Concurrency)
	for _, t := range c.config.Types {
		t := t
		eg.Go(func() error {
			buckets, err := c.config.Graph.FindAllWithDetails(egCtx, t)
			if err != nil {
				return errors.Trace(err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, b := range buckets {
				if filter.Matches(b.Resource.Name) {
					matches = append(matches, b.Resource)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, errors.Trace(err)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Type != matches[j].Type {
			return matches[i].Type < matches[j].Type
		}
		return matches[i].Name < matches[j].Name
	})
	return matches, nil
}
