// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package changes describes mutations of the resource graph and how
// they are batched before being sent to it.
package changes

import (
	"fmt"
	"sort"

	"github.com/juju/errors"

	"github.com/juju/relocate/core/resource"
)

// ErrMixedOwners is returned when a link joins two resources owned by
// different owners, so no owner scoped batch can hold it.
const ErrMixedOwners = errors.ConstError("link joins resources of different owners")

// Link is a directed, typed link between two resources.
type Link struct {
	From resource.Resource
	Type resource.LinkType
	To   resource.Resource
}

// String returns the link as "<from> -> <type> -> <to>".
func (l Link) String() string {
	return fmt.Sprintf("%s -> %s -> %s", l.From, l.Type, l.To)
}

// Owner returns the owner the link belongs to. Machine references and
// other unowned endpoints do not constrain it.
func (l Link) Owner() (string, error) {
	from, to := l.From.Owner, l.To.Owner
	switch {
	case from == "" || from == to:
		return to, nil
	case to == "":
		return from, nil
	}
	return "", errors.Annotatef(ErrMixedOwners, "%s (%q and %q)", l, from, to)
}

// Update replaces a resource with an updated version of it.
type Update struct {
	Current resource.Resource
	Updated resource.Resource
}

// Changes is a set of mutations applied by the graph in a single
// transaction.
type Changes struct {
	LinksToAdd        []Link
	LinksToDelete     []Link
	ResourcesToUpdate []Update

	// DefaultOwner is the owner the batch is scoped to.
	DefaultOwner string
}

// AddLink records a link to add.
func (c *Changes) AddLink(from resource.Resource, linkType resource.LinkType, to resource.Resource) {
	c.LinksToAdd = append(c.LinksToAdd, Link{From: from, Type: linkType, To: to})
}

// DeleteLink records a link to delete.
func (c *Changes) DeleteLink(from resource.Resource, linkType resource.LinkType, to resource.Resource) {
	c.LinksToDelete = append(c.LinksToDelete, Link{From: from, Type: linkType, To: to})
}

// UpdateResource records a resource update.
func (c *Changes) UpdateResource(current, updated resource.Resource) {
	c.ResourcesToUpdate = append(c.ResourcesToUpdate, Update{Current: current, Updated: updated})
}

// Merge appends all the mutations of other.
func (c *Changes) Merge(other Changes) {
	c.LinksToAdd = append(c.LinksToAdd, other.LinksToAdd...)
	c.LinksToDelete = append(c.LinksToDelete, other.LinksToDelete...)
	c.ResourcesToUpdate = append(c.ResourcesToUpdate, other.ResourcesToUpdate...)
}

// IsEmpty reports whether there is nothing to apply.
func (c Changes) IsEmpty() bool {
	return len(c.LinksToAdd) == 0 && len(c.LinksToDelete) == 0 && len(c.ResourcesToUpdate) == 0
}

// SplitByOwner splits the changes into batches that each only touch
// resources of a single owner. Batches are ordered by owner, the
// unowned batch first. Links keep their relative order.
func SplitByOwner(c Changes) ([]Changes, error) {
	byOwner := make(map[string]*Changes)
	batch := func(owner string) *Changes {
		b, ok := byOwner[owner]
		if !ok {
			b = &Changes{DefaultOwner: owner}
			byOwner[owner] = b
		}
		return b
	}

	for _, l := range c.LinksToAdd {
		owner, err := l.Owner()
		if err != nil {
			return nil, errors.Trace(err)
		}
		b := batch(owner)
		b.LinksToAdd = append(b.LinksToAdd, l)
	}
	for _, l := range c.LinksToDelete {
		owner, err := l.Owner()
		if err != nil {
			return nil, errors.Trace(err)
		}
		b := batch(owner)
		b.LinksToDelete = append(b.LinksToDelete, l)
	}
	for _, u := range c.ResourcesToUpdate {
		b := batch(u.Updated.Owner)
		b.ResourcesToUpdate = append(b.ResourcesToUpdate, u)
	}

	owners := make([]string, 0, len(byOwner))
	for owner := range byOwner {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	batches := make([]Changes, len(owners))
	for i, owner := range owners {
		batches[i] = *byOwner[owner]
	}
	return batches, nil
}
