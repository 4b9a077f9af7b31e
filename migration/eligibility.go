// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package migration

import (
	"context"
	"sort"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/relocate/api/graph"
	"github.com/juju/relocate/core/progress"
	"github.com/juju/relocate/core/resource"
	"github.com/juju/relocate/profile"
)

// ManagedApplication is an application along with the single resource
// managing it.
type ManagedApplication struct {
	Application resource.Resource
	Manager     resource.Resource
}

// Eligibility is what the checker found about an account that can be
// migrated.
type Eligibility struct {
	Account resource.Resource

	// Machines are the sorted names of the machines the account is
	// installed on.
	Machines []string

	// Applications are the applications running as the account on
	// the source machine, sorted by name.
	Applications []ManagedApplication
}

// ApplicationNames returns the names of the applications.
func (e Eligibility) ApplicationNames() []string {
	names := make([]string, len(e.Applications))
	for i, app := range e.Applications {
		names[i] = app.Application.Name
	}
	return names
}

// Managers returns the manager resources of the applications.
func (e Eligibility) Managers() []resource.Resource {
	managers := make([]resource.Resource, len(e.Applications))
	for i, app := range e.Applications {
		managers[i] = app.Manager
	}
	return managers
}

// Checker verifies an account can be migrated. It never changes the
// graph.
type Checker struct {
	graph graph.Client
	out   progress.Output
}

// NewChecker returns a checker reading from g and tracing to out.
func NewChecker(g graph.Client, out progress.Output) *Checker {
	if out == nil {
		out = progress.Discard
	}
	return &Checker{graph: g, out: out}
}

// Check returns what is needed to migrate the account off the source
// machine, or the first reason it cannot be. Every application is
// inspected before failing so that the trace lists all the problems.
func (c *Checker) Check(ctx context.Context, pair profile.Pair, sourceMachine, accountName string) (Eligibility, error) {
	if pair.Source.Name != pair.Target.Name && !pair.SameBackend() {
		return Eligibility{}, errors.Annotatef(ErrProfileMismatch, "%q and %q", pair.Source.Name, pair.Target.Name)
	}

	account, err := graph.FindBucket(ctx, c.graph, resource.UnixUserType, map[string]string{"name": accountName})
	if errors.Is(err, errors.NotFound) {
		return Eligibility{}, errors.Annotatef(ErrAccountNotFound, "%q", accountName)
	} else if err != nil {
		return Eligibility{}, errors.Annotatef(err, "finding account %q", accountName)
	}

	result := Eligibility{
		Account:  account.Resource,
		Machines: account.MachinesFor(resource.InstalledOn).SortedValues(),
	}
	c.out.Infof("Unix user %s is installed on machines:", accountName)
	for _, machine := range result.Machines {
		c.out.Infof("\t%s", machine)
	}
	if !set.NewStrings(result.Machines...).Contains(sourceMachine) {
		return Eligibility{}, errors.Annotatef(ErrAccountNotOnSource, "%q on %q", accountName, sourceMachine)
	}

	var apps []resource.Bucket
	for _, ref := range account.From(resource.RunAs, resource.ApplicationType) {
		app, err := c.graph.FindByID(ctx, ref.ID)
		if err != nil {
			return Eligibility{}, errors.Annotatef(err, "finding application %q", ref.Name)
		}
		apps = append(apps, app)
	}
	sortBuckets(apps)

	c.out.Infof("Unix user %s is used by applications:", accountName)
	var problem error
	for _, app := range apps {
		managed, err := c.checkApplication(ctx, app, sourceMachine)
		if err != nil && (errors.Is(err, ErrApplicationUnmanaged) ||
			errors.Is(err, ErrApplicationAmbiguouslyManaged) ||
			errors.Is(err, ErrUnsupportedManagerType)) {
			if problem == nil {
				problem = err
			}
			continue
		} else if err != nil {
			return Eligibility{}, errors.Trace(err)
		}
		if managed != nil {
			result.Applications = append(result.Applications, *managed)
		}
	}
	if problem != nil {
		return Eligibility{}, errors.Trace(problem)
	}
	return result, nil
}

// checkApplication returns nil without error when the application is
// not on the source machine.
func (c *Checker) checkApplication(ctx context.Context, app resource.Bucket, sourceMachine string) (*ManagedApplication, error) {
	name := app.Resource.Name
	c.out.Infof("\t%s", name)

	machines := app.MachinesFor(resource.InstalledOn)
	c.out.Infof("\t\tis installed on machines:")
	for _, machine := range machines.SortedValues() {
		c.out.Infof("\t\t\t%s", machine)
	}
	if !machines.Contains(sourceMachine) {
		c.out.Infof("\t\t[SKIP] Not installed on the source machine")
		return nil, nil
	}

	managers := app.FromAny(resource.Manages)
	c.out.Infof("\t\tis managed by:")
	switch len(managers) {
	case 0:
		c.out.Infof("\t\t\t[STOP] The application is not managed by any known resource type")
		return nil, errors.Annotatef(ErrApplicationUnmanaged, "%q", name)
	case 1:
	default:
		c.out.Infof("\t\t\t[STOP] The application is managed by more than 1 resource")
		for _, m := range managers {
			c.out.Infof("\t\t\t\t%s", m)
		}
		return nil, errors.Annotatef(ErrApplicationAmbiguouslyManaged, "%q", name)
	}

	manager := managers[0]
	if !resource.IsManagerType(manager.Type) {
		c.out.Infof("\t\t\t[NO] Doesn't know how to handle Resource Type: %s", manager.Type)
		return nil, errors.Annotatef(ErrUnsupportedManagerType, "%q managing %q", manager.Type, name)
	}
	c.out.Infof("\t\t\t[OK] Resource Type: %s", manager.Type)

	full, err := c.graph.FindByID(ctx, manager.ID)
	if err != nil {
		return nil, errors.Annotatef(err, "finding manager of %q", name)
	}
	return &ManagedApplication{Application: app.Resource, Manager: full.Resource}, nil
}

func sortBuckets(buckets []resource.Bucket) {
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Resource.Name < buckets[j].Resource.Name
	})
}
