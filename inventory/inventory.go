// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package inventory lists what is installed on a machine, grouped by
// the account each resource runs as.
package inventory

import (
	"context"
	"fmt"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/naturalsort"
	"golang.org/x/sync/errgroup"

	"github.com/juju/relocate/api/graph"
	"github.com/juju/relocate/core/progress"
	"github.com/juju/relocate/core/resource"
)

var logger = loggo.GetLogger("relocate.inventory")

// NoAccount groups the resources that do not run as any account.
const NoAccount = "N/A"

// DefaultConcurrency bounds the resources fetched at the same time.
const DefaultConcurrency = 5

// Group is the resources installed on a machine that run as the same
// account.
type Group struct {
	Account string

	// Resources are "<type> <name>" entries, in natural order.
	Resources []string
}

// Inventory is everything installed on a machine.
type Inventory struct {
	Machine string

	// Groups are sorted by account, in natural order.
	Groups []Group
}

// IsEmpty reports whether nothing is installed on the machine.
func (inv Inventory) IsEmpty() bool {
	return len(inv.Groups) == 0
}

// Print writes the inventory, one account per line followed by its
// resources.
func (inv Inventory) Print(out progress.Output) {
	for _, g := range inv.Groups {
		out.Infof("%s", g.Account)
		for _, r := range g.Resources {
			out.Infof("\t%s", r)
		}
	}
}

// List returns what is installed on the machine, including resources
// still served from it without DNS. Resources are fetched by at most
// concurrency goroutines; DefaultConcurrency is used when it is not
// positive.
func List(ctx context.Context, g graph.Client, machine string, concurrency int) (Inventory, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	m, err := graph.FindMachine(ctx, g, machine)
	if err != nil {
		return Inventory{}, errors.Trace(err)
	}

	installed := append(m.FromAny(resource.InstalledOn), m.FromAny(resource.InstalledOnNoDNS)...)
	entries := make([]entry, len(installed))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i, r := range installed {
		i, r := i, r
		eg.Go(func() error {
			b, err := g.FindByID(egCtx, r.ID)
			if err != nil {
				return errors.Annotatef(err, "finding %s", r)
			}
			entries[i] = entryFor(b)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Inventory{}, errors.Trace(err)
	}
	logger.Debugf("%d resources installed on %s", len(entries), machine)
	return group(machine, entries), nil
}

type entry struct {
	account  string
	resource string
}

func entryFor(b resource.Bucket) entry {
	e := entry{
		account:  NoAccount,
		resource: fmt.Sprintf("%s %s", b.Resource.Type, b.Resource.Name),
	}
	for _, l := range b.LinksTo {
		if l.Type == resource.RunAs {
			e.account = l.Other.Name
			break
		}
	}
	return e
}

func group(machine string, entries []entry) Inventory {
	byAccount := make(map[string][]string)
	seen := make(map[entry]bool)
	for _, e := range entries {
		if seen[e] {
			continue
		}
		seen[e] = true
		byAccount[e.account] = append(byAccount[e.account], e.resource)
	}
	accounts := make([]string, 0, len(byAccount))
	for account := range byAccount {
		accounts = append(accounts, account)
	}

	inv := Inventory{Machine: machine}
	for _, account := range naturalsort.Sort(accounts) {
		inv.Groups = append(inv.Groups, Group{
			Account:   account,
			Resources: naturalsort.Sort(byAccount[account]),
		})
	}
	return inv
}
