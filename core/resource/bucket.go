// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package resource

import (
	"sort"

	"github.com/juju/collections/set"
)

// New returns a resource with the given id and typed details. The
// resource name is taken from the details.
func New(id string, t Type, details Details) Resource {
	return Resource{
		ID:      id,
		Type:    t,
		Name:    detailsName(details),
		Details: details,
	}
}

// PartialLink is one side of a link, as seen from the resource
// holding it.
type PartialLink struct {
	Type  LinkType
	Other Resource
}

// Bucket is a resource along with the links it takes part in.
type Bucket struct {
	Resource Resource

	// LinksTo are the links going out of the resource.
	LinksTo []PartialLink

	// LinksFrom are the links coming into the resource.
	LinksFrom []PartialLink
}

// To returns the resources of type t this resource links to with the
// given link type.
func (b Bucket) To(linkType LinkType, t Type) []Resource {
	return filterLinks(b.LinksTo, linkType, t)
}

// From returns the resources of type t linking to this resource with
// the given link type.
func (b Bucket) From(linkType LinkType, t Type) []Resource {
	return filterLinks(b.LinksFrom, linkType, t)
}

// FromAny returns every resource linking to this resource with the
// given link type, whatever its type.
func (b Bucket) FromAny(linkType LinkType) []Resource {
	return filterLinks(b.LinksFrom, linkType, "")
}

// MachinesFor returns the names of the machines this resource is
// linked to with the given link type.
func (b Bucket) MachinesFor(linkType LinkType) set.Strings {
	return set.NewStrings(Names(b.To(linkType, MachineType))...)
}

func filterLinks(links []PartialLink, linkType LinkType, t Type) []Resource {
	var out []Resource
	for _, l := range links {
		if l.Type != linkType {
			continue
		}
		if t != "" && l.Other.Type != t {
			continue
		}
		out = append(out, l.Other)
	}
	return out
}

// Names returns the sorted names of the resources.
func Names(resources []Resource) []string {
	names := make([]string, len(resources))
	for i, r := range resources {
		names[i] = r.Name
	}
	sort.Strings(names)
	return names
}

// SortByName sorts resources by name, then by id.
func SortByName(resources []Resource) {
	sort.Slice(resources, func(i, j int) bool {
		if resources[i].Name != resources[j].Name {
			return resources[i].Name < resources[j].Name
		}
		return resources[i].ID < resources[j].ID
	})
}
