// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package resource holds the typed model of the resources and links
// found in the resource graph. Payloads are decoded once, at the
// graph client boundary, into these records.
package resource

import (
	"fmt"
	"path"
)

// Type identifies the kind of a resource in the graph.
type Type string

const (
	MachineType        Type = "Machine"
	UnixUserType       Type = "Unix User"
	ApplicationType    Type = "Application"
	WebsiteType        Type = "Website"
	URLRedirectionType Type = "Url Redirection"
	DomainType         Type = "Domain"
	ApachePHPType      Type = "Apache PHP"
	MariaDBServerType  Type = "MariaDB Server"
)

// LinkType identifies the kind of a directed link between two resources.
type LinkType string

const (
	// InstalledOn means the resource is served from the machine and is
	// advertised in DNS.
	InstalledOn LinkType = "INSTALLED_ON"

	// InstalledOnNoDNS means the resource is still served from the
	// machine but is no longer advertised in DNS. It only exists while
	// a cutover is waiting for DNS caches to expire.
	InstalledOnNoDNS LinkType = "INSTALLED_ON_NO_DNS"

	RunAs    LinkType = "RUN_AS"
	Manages  LinkType = "MANAGES"
	PointsTo LinkType = "POINTS_TO"
)

// OwnerMetaKey is the meta attribute holding the owner of a resource.
const OwnerMetaKey = "UI_OWNER"

// managerTypes are the resource types that know how to install and
// uninstall the applications they manage.
var managerTypes = map[Type]bool{
	ApachePHPType:     true,
	MariaDBServerType: true,
}

// IsManagerType reports whether resources of the given type can be
// relocated together with the applications they manage.
func IsManagerType(t Type) bool {
	return managerTypes[t]
}

// Details is the typed payload of a resource. It is one of Machine,
// UnixUser, Application, Website, URLRedirection, Domain, Manager or
// Generic.
type Details interface {
	isDetails()
}

// Machine is a managed host.
type Machine struct {
	Name string
}

// UnixUser is an account on one machine.
type UnixUser struct {
	Name       string
	HomeFolder string
}

// Home returns the home folder of the account, falling back to the
// conventional location when the graph does not carry one.
func (u UnixUser) Home() string {
	if u.HomeFolder != "" {
		return u.HomeFolder
	}
	return path.Join("/home", u.Name)
}

// Application is a process run as a Unix user on one or more machines.
type Application struct {
	Name string
}

// Website serves a set of domain names from the applications it
// points to.
type Website struct {
	Name        string
	DomainNames []string
	HTTPS       bool
}

// URLRedirection redirects a domain name to another URL.
type URLRedirection struct {
	DomainName    string
	HTTPRedirect  string
	HTTPSRedirect string
}

// Domain is a DNS domain name.
type Domain struct {
	Name string
}

// Manager is a resource, like an Apache PHP or a MariaDB server
// definition, that manages applications.
type Manager struct {
	Name string
}

// Generic is used for resource types this package does not model.
type Generic struct{}

func (Machine) isDetails()        {}
func (UnixUser) isDetails()       {}
func (Application) isDetails()    {}
func (Website) isDetails()        {}
func (URLRedirection) isDetails() {}
func (Domain) isDetails()         {}
func (Manager) isDetails()        {}
func (Generic) isDetails()        {}

// Resource is a node of the resource graph.
type Resource struct {
	// ID is the graph internal id. It is empty for references that
	// are resolved by the graph using their type and name.
	ID      string
	Type    Type
	Name    string
	Owner   string
	Details Details

	// attrs keeps the decoded payload so that updates sent back to
	// the graph do not lose attributes this package does not model.
	attrs map[string]interface{}
}

// MachineRef returns a reference to the named machine, suitable as the
// target of a link. It carries no owner.
func MachineRef(name string) Resource {
	return Resource{
		Type:    MachineType,
		Name:    name,
		Details: Machine{Name: name},
	}
}

// WithOwner returns a copy of the resource with the owner replaced.
func (r Resource) WithOwner(owner string) Resource {
	r.Owner = owner
	return r
}

// String returns the resource as "<type>/<name>".
func (r Resource) String() string {
	return fmt.Sprintf("%s/%s", r.Type, r.Name)
}

// Key identifies the resource within one graph. References without an
// id are identified by their type and name.
func (r Resource) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return fmt.Sprintf("%s/%s", r.Type, r.Name)
}
