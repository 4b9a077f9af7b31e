// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package inventory_test

import (
	"bytes"
	"context"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/relocate/api/graph/graphtesting"
	"github.com/juju/relocate/core/progress"
	"github.com/juju/relocate/core/resource"
	"github.com/juju/relocate/inventory"
)

type inventorySuite struct {
	testing.IsolationSuite

	graph *graphtesting.Graph
	m1    resource.Resource
}

var _ = gc.Suite(&inventorySuite{})

func (s *inventorySuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.graph = graphtesting.New()
	s.m1 = s.graph.AddMachine("m1")
	s.graph.AddMachine("m2")

	bob := s.graph.Add(resource.New("", resource.UnixUserType, resource.UnixUser{Name: "bob"}))
	s.graph.Link(bob, resource.InstalledOn, s.m1)
	for _, name := range []string{"app10", "app2", "app1"} {
		app := s.graph.Add(resource.New("", resource.ApplicationType, resource.Application{Name: name}))
		s.graph.Link(app, resource.RunAs, bob)
		s.graph.Link(app, resource.InstalledOn, s.m1)
	}
	php := s.graph.Add(resource.New("", resource.ApachePHPType, resource.Manager{Name: "php1"}))
	s.graph.Link(php, resource.InstalledOn, s.m1)
	www := s.graph.Add(resource.New("", resource.WebsiteType, resource.Website{Name: "www"}))
	s.graph.Link(www, resource.InstalledOnNoDNS, s.m1)
}

func (s *inventorySuite) TestList(c *gc.C) {
	inv, err := inventory.List(context.Background(), s.graph, "m1", 2)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(inv.Machine, gc.Equals, "m1")
	c.Check(inv.IsEmpty(), jc.IsFalse)

	byAccount := make(map[string][]string)
	for _, g := range inv.Groups {
		byAccount[g.Account] = g.Resources
	}
	c.Check(byAccount, jc.DeepEquals, map[string][]string{
		"bob":               {"Application app1", "Application app2", "Application app10"},
		inventory.NoAccount: {"Apache PHP php1", "Unix User bob", "Website www"},
	})
}

func (s *inventorySuite) TestListEmptyMachine(c *gc.C) {
	inv, err := inventory.List(context.Background(), s.graph, "m2", 0)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(inv.IsEmpty(), jc.IsTrue)

	var buf bytes.Buffer
	inv.Print(progress.NewWriter(&buf))
	c.Check(buf.String(), gc.Equals, "")
}

func (s *inventorySuite) TestPrint(c *gc.C) {
	inv := inventory.Inventory{Machine: "m1", Groups: []inventory.Group{
		{Account: "bob", Resources: []string{"Application app1", "Application app2"}},
		{Account: "carol", Resources: []string{"Application blog"}},
	}}
	var buf bytes.Buffer
	inv.Print(progress.NewWriter(&buf))
	c.Check(buf.String(), gc.Equals, "bob\n\tApplication app1\n\tApplication app2\ncarol\n\tApplication blog\n")
}

func (s *inventorySuite) TestUnknownMachine(c *gc.C) {
	_, err := inventory.List(context.Background(), s.graph, "m9", 0)
	c.Check(err, jc.Satisfies, errors.IsNotFound)
	c.Check(err, gc.ErrorMatches, `machine "m9": .*`)
}
