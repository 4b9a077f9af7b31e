// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package graphtesting provides an in-memory resource graph for tests.
package graphtesting

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/juju/errors"
	"github.com/juju/testing"

	"github.com/juju/relocate/api/graph"
	"github.com/juju/relocate/core/changes"
	"github.com/juju/relocate/core/resource"
)

type link struct {
	from     string
	linkType resource.LinkType
	to       string
}

// Graph is an in-memory graph.Client. Every call is recorded on the
// embedded Stub; errors set on the Stub are only returned by
// ApplyChanges. Links to machines that do not exist yet create them,
// the way the real service resolves machine references by name.
type Graph struct {
	*testing.Stub

	// FailApply, when set, is called with every batch before it is
	// applied. A non-nil error fails the batch.
	FailApply func(changes.Changes) error

	mu        sync.Mutex
	nextID    int
	resources map[string]resource.Resource
	links     []link
	applied   []changes.Changes
}

var _ graph.Client = (*Graph)(nil)

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		Stub:      &testing.Stub{},
		resources: make(map[string]resource.Resource),
	}
}

// Add stores the resource, assigning it an id if it has none, and
// returns the stored version.
func (g *Graph) Add(r resource.Resource) resource.Resource {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.add(r)
}

func (g *Graph) add(r resource.Resource) resource.Resource {
	if r.ID == "" {
		g.nextID++
		r.ID = fmt.Sprintf("%d", g.nextID)
	}
	g.resources[r.ID] = r
	return r
}

// AddMachine stores a machine with the given name.
func (g *Graph) AddMachine(name string) resource.Resource {
	return g.Add(resource.MachineRef(name))
}

// Link adds a link between two stored resources.
func (g *Graph) Link(from resource.Resource, linkType resource.LinkType, to resource.Resource) {
	g.mu.Lock()
	defer g.mu.Unlock()
	l := link{from: g.resolve(from).ID, linkType: linkType, to: g.resolve(to).ID}
	if !g.hasLink(l) {
		g.links = append(g.links, l)
	}
}

// Unlink removes a link between two stored resources, if it exists.
func (g *Graph) Unlink(from resource.Resource, linkType resource.LinkType, to resource.Resource) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fromID, okFrom := g.lookup(from)
	toID, okTo := g.lookup(to)
	if okFrom && okTo {
		g.removeLink(link{from: fromID, linkType: linkType, to: toID})
	}
}

// HasLink reports whether the link exists.
func (g *Graph) HasLink(from resource.Resource, linkType resource.LinkType, to resource.Resource) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	fromID, ok := g.lookup(from)
	if !ok {
		return false
	}
	toID, ok := g.lookup(to)
	if !ok {
		return false
	}
	return g.hasLink(link{from: fromID, linkType: linkType, to: toID})
}

// MachinesOf returns the sorted names of the machines the resource is
// linked to with the given link type.
func (g *Graph) MachinesOf(r resource.Resource, linkType resource.LinkType) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.lookup(r)
	if !ok {
		return nil
	}
	names := []string{}
	for _, l := range g.links {
		if l.from != id || l.linkType != linkType {
			continue
		}
		if other := g.resources[l.to]; other.Type == resource.MachineType {
			names = append(names, other.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Resource returns the stored version of the resource with the id.
func (g *Graph) Resource(id string) (resource.Resource, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.resources[id]
	return r, ok
}

// Applied returns the batches successfully applied so far.
func (g *Graph) Applied() []changes.Changes {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]changes.Changes, len(g.applied))
	copy(out, g.applied)
	return out
}

func (g *Graph) hasLink(l link) bool {
	for _, existing := range g.links {
		if existing == l {
			return true
		}
	}
	return false
}

func (g *Graph) removeLink(l link) bool {
	for i, existing := range g.links {
		if existing == l {
			g.links = append(g.links[:i], g.links[i+1:]...)
			return true
		}
	}
	return false
}

// lookup finds the id of a stored resource, by id or by type and name.
func (g *Graph) lookup(r resource.Resource) (string, bool) {
	if r.ID != "" {
		_, ok := g.resources[r.ID]
		return r.ID, ok
	}
	for id, stored := range g.resources {
		if stored.Type == r.Type && stored.Name == r.Name {
			return id, true
		}
	}
	return "", false
}

// resolve returns the stored resource, creating it if needed.
func (g *Graph) resolve(r resource.Resource) resource.Resource {
	if id, ok := g.lookup(r); ok {
		return g.resources[id]
	}
	return g.add(r)
}

// FindOne implements graph.Client. Properties are matched against the
// encoded resource attributes.
func (g *Graph) FindOne(ctx context.Context, t resource.Type, properties map[string]string) (resource.Resource, error) {
	g.AddCall("FindOne", t, properties)
	g.mu.Lock()
	defer g.mu.Unlock()

	var found []resource.Resource
	for _, r := range g.resources {
		if r.Type != t {
			continue
		}
		attrs := resource.Encode(r)
		matches := true
		for k, v := range properties {
			if fmt.Sprint(attrs[k]) != v {
				matches = false
				break
			}
		}
		if matches {
			found = append(found, r)
		}
	}
	switch len(found) {
	case 0:
		return resource.Resource{}, errors.NotFoundf("%s %v", t, properties)
	case 1:
		return found[0], nil
	}
	return resource.Resource{}, errors.Errorf("%d %s resources match %v", len(found), t, properties)
}

// FindByID implements graph.Client.
func (g *Graph) FindByID(ctx context.Context, id string) (resource.Bucket, error) {
	g.AddCall("FindByID", id)
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.resources[id]; !ok {
		return resource.Bucket{}, errors.NotFoundf("resource %q", id)
	}
	return g.bucket(id), nil
}

// FindAllWithDetails implements graph.Client.
func (g *Graph) FindAllWithDetails(ctx context.Context, t resource.Type) ([]resource.Bucket, error) {
	g.AddCall("FindAllWithDetails", t)
	g.mu.Lock()
	defer g.mu.Unlock()
	var ids []string
	for id, r := range g.resources {
		if r.Type == t {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	buckets := make([]resource.Bucket, len(ids))
	for i, id := range ids {
		buckets[i] = g.bucket(id)
	}
	return buckets, nil
}

func (g *Graph) bucket(id string) resource.Bucket {
	b := resource.Bucket{Resource: g.resources[id]}
	for _, l := range g.links {
		if l.from == id {
			b.LinksTo = append(b.LinksTo, resource.PartialLink{Type: l.linkType, Other: g.resources[l.to]})
		}
		if l.to == id {
			b.LinksFrom = append(b.LinksFrom, resource.PartialLink{Type: l.linkType, Other: g.resources[l.from]})
		}
	}
	return b
}

// ApplyChanges implements graph.Client. Batches mixing owners are
// rejected the way the service rejects them.
func (g *Graph) ApplyChanges(ctx context.Context, c changes.Changes) (changes.Applied, error) {
	g.MethodCall(g, "ApplyChanges", c)
	if err := g.NextErr(); err != nil {
		return changes.Applied{}, err
	}
	if g.FailApply != nil {
		if err := g.FailApply(c); err != nil {
			return changes.Applied{}, err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, l := range append(append([]changes.Link{}, c.LinksToAdd...), c.LinksToDelete...) {
		owner, err := l.Owner()
		if err != nil {
			return changes.Applied{}, &graph.Error{Message: err.Error()}
		}
		if owner != "" && owner != c.DefaultOwner {
			return changes.Applied{}, &graph.Error{
				Message: fmt.Sprintf("link %s is owned by %q, batch by %q", l, owner, c.DefaultOwner),
			}
		}
	}

	var audit []changes.AuditItem
	for _, l := range c.LinksToDelete {
		fromID, okFrom := g.lookup(l.From)
		toID, okTo := g.lookup(l.To)
		if !okFrom || !okTo {
			continue
		}
		if g.removeLink(link{from: fromID, linkType: l.Type, to: toID}) {
			audit = append(audit, linkAudit("DELETE", l))
		}
	}
	for _, l := range c.LinksToAdd {
		from := g.resolve(l.From)
		to := g.resolve(l.To)
		added := link{from: from.ID, linkType: l.Type, to: to.ID}
		if !g.hasLink(added) {
			g.links = append(g.links, added)
			audit = append(audit, linkAudit("ADD", l))
		}
	}
	for _, u := range c.ResourcesToUpdate {
		id, ok := g.lookup(u.Current)
		if !ok {
			return changes.Applied{}, &graph.Error{Message: fmt.Sprintf("resource %s does not exist", u.Current)}
		}
		updated := u.Updated
		updated.ID = id
		g.resources[id] = updated
		audit = append(audit, changes.AuditItem{Action: "UPDATE", Type: "RESOURCE", First: updated.String()})
	}

	g.applied = append(g.applied, c)
	return changes.Applied{
		TxID:            fmt.Sprintf("tx-%d", len(g.applied)),
		AuditItems:      audit,
		TotalAuditItems: len(audit),
	}, nil
}

func linkAudit(action string, l changes.Link) changes.AuditItem {
	return changes.AuditItem{
		Action:   action,
		Type:     "LINK",
		First:    l.From.String(),
		LinkType: string(l.Type),
		Second:   l.To.String(),
	}
}
