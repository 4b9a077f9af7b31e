// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cutover

import (
	"context"
	"sort"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/relocate/api/graph"
	"github.com/juju/relocate/core/changes"
	"github.com/juju/relocate/core/resource"
)

// Plan is what a cutover of a domain works on.
type Plan struct {
	Domain resource.Resource

	// Websites are the websites of the domain, sorted by name, as they
	// were when the plan was made.
	Websites []resource.Bucket

	// Redirections are the redirections of the domain and of its
	// websites, sorted by name.
	Redirections []resource.Resource

	// Desired are the machines the websites and redirections must end
	// up installed on.
	Desired set.Strings
}

// ResolvePlan reads the domain and decides where its websites and
// redirections go. They follow the applications the websites point to.
// targetMachine is only used when there is no application to follow.
func ResolvePlan(ctx context.Context, g graph.Client, domainName, targetMachine string) (Plan, error) {
	domain, err := graph.FindBucket(ctx, g, resource.DomainType, map[string]string{"name": domainName})
	if errors.Is(err, errors.NotFound) {
		return Plan{}, errors.Annotatef(ErrDomainNotFound, "%q", domainName)
	} else if err != nil {
		return Plan{}, errors.Annotatef(err, "finding domain %q", domainName)
	}
	plan := Plan{Domain: domain.Resource}

	for _, ref := range domain.To(resource.Manages, resource.WebsiteType) {
		website, err := g.FindByID(ctx, ref.ID)
		if err != nil {
			return Plan{}, errors.Annotatef(err, "finding website %q", ref.Name)
		}
		plan.Websites = append(plan.Websites, website)
	}
	sort.Slice(plan.Websites, func(i, j int) bool {
		return plan.Websites[i].Resource.Name < plan.Websites[j].Resource.Name
	})

	seen := set.NewStrings()
	addRedirections := func(refs []resource.Resource) {
		for _, r := range refs {
			if seen.Contains(r.Key()) {
				continue
			}
			seen.Add(r.Key())
			plan.Redirections = append(plan.Redirections, r)
		}
	}
	addRedirections(domain.To(resource.Manages, resource.URLRedirectionType))
	for _, website := range plan.Websites {
		addRedirections(website.To(resource.Manages, resource.URLRedirectionType))
	}
	resource.SortByName(plan.Redirections)

	plan.Desired, err = desiredMachines(ctx, g, domainName, plan.Websites, targetMachine)
	if err != nil {
		return Plan{}, errors.Trace(err)
	}
	return plan, nil
}

func desiredMachines(ctx context.Context, g graph.Client, domainName string, websites []resource.Bucket, targetMachine string) (set.Strings, error) {
	var apps []resource.Resource
	seen := set.NewStrings()
	for _, website := range websites {
		for _, app := range website.To(resource.PointsTo, resource.ApplicationType) {
			if !seen.Contains(app.Key()) {
				seen.Add(app.Key())
				apps = append(apps, app)
			}
		}
	}
	resource.SortByName(apps)

	if len(apps) == 0 {
		if targetMachine == "" {
			return nil, errors.Annotatef(ErrAmbiguousRedirectionTarget, "%q", domainName)
		}
		return set.NewStrings(targetMachine), nil
	}

	var (
		desired set.Strings
		first   string
	)
	for _, ref := range apps {
		app, err := g.FindByID(ctx, ref.ID)
		if err != nil {
			return nil, errors.Annotatef(err, "finding application %q", ref.Name)
		}
		machines := app.MachinesFor(resource.InstalledOn)
		if desired == nil {
			desired, first = machines, ref.Name
			continue
		}
		if !changes.Diff(desired, machines).IsEmpty() {
			return nil, errors.Annotatef(ErrInconsistentApplicationPlacement,
				"%q: %s on %v, %s on %v", domainName, first, desired.SortedValues(), ref.Name, machines.SortedValues())
		}
	}
	if desired.IsEmpty() {
		return nil, errors.Annotatef(ErrNoTargetMachine, "applications of %q are not installed anywhere", domainName)
	}
	if targetMachine != "" && !desired.Contains(targetMachine) {
		logger.Debugf("%s follows its applications on %v, not %s", domainName, desired.SortedValues(), targetMachine)
	}
	return desired, nil
}

// WebsiteChanges returns the changes moving the website to the desired
// machines while the machines it leaves keep serving it without being
// advertised in DNS. ok is false when the website is already exactly
// where it should be.
func WebsiteChanges(website resource.Bucket, desired set.Strings) (_ changes.Changes, ok bool) {
	var ch changes.Changes
	current := website.MachinesFor(resource.InstalledOn)
	noDNS := website.MachinesFor(resource.InstalledOnNoDNS)
	delta := changes.Diff(current, desired)
	if delta.IsEmpty() && noDNS.IsEmpty() {
		return ch, false
	}

	w := website.Resource
	for _, m := range delta.Remove.SortedValues() {
		ch.DeleteLink(w, resource.InstalledOn, resource.MachineRef(m))
		if !noDNS.Contains(m) {
			ch.AddLink(w, resource.InstalledOnNoDNS, resource.MachineRef(m))
		}
	}
	for _, m := range delta.Add.SortedValues() {
		ch.AddLink(w, resource.InstalledOn, resource.MachineRef(m))
	}
	// A machine cannot be both advertised and not.
	for _, m := range noDNS.Intersection(desired).SortedValues() {
		ch.DeleteLink(w, resource.InstalledOnNoDNS, resource.MachineRef(m))
	}
	return ch, true
}

// NoDNSChanges returns the changes removing every INSTALLED_ON_NO_DNS
// link of the resource.
func NoDNSChanges(b resource.Bucket) changes.Changes {
	var ch changes.Changes
	for _, m := range b.MachinesFor(resource.InstalledOnNoDNS).SortedValues() {
		ch.DeleteLink(b.Resource, resource.InstalledOnNoDNS, resource.MachineRef(m))
	}
	return ch
}

// RedirectionChanges returns the changes installing the redirection on
// the desired machines only. Redirections go straight to their final
// state.
func RedirectionChanges(b resource.Bucket, desired set.Strings) changes.Changes {
	ch := NoDNSChanges(b)
	delta := changes.Diff(b.MachinesFor(resource.InstalledOn), desired)
	for _, m := range delta.Remove.SortedValues() {
		ch.DeleteLink(b.Resource, resource.InstalledOn, resource.MachineRef(m))
	}
	for _, m := range delta.Add.SortedValues() {
		ch.AddLink(b.Resource, resource.InstalledOn, resource.MachineRef(m))
	}
	return ch
}
