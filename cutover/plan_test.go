// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cutover_test

import (
	"github.com/juju/collections/set"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/relocate/core/changes"
	"github.com/juju/relocate/core/resource"
	"github.com/juju/relocate/cutover"
)

type planSuite struct {
	testing.IsolationSuite

	www resource.Resource
}

var _ = gc.Suite(&planSuite{})

func (s *planSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.www = resource.New("7", resource.WebsiteType, resource.Website{Name: "www"}).WithOwner("alice")
}

func (s *planSuite) bucket(installed, noDNS []string) resource.Bucket {
	b := resource.Bucket{Resource: s.www}
	for _, m := range installed {
		b.LinksTo = append(b.LinksTo, resource.PartialLink{Type: resource.InstalledOn, Other: resource.MachineRef(m)})
	}
	for _, m := range noDNS {
		b.LinksTo = append(b.LinksTo, resource.PartialLink{Type: resource.InstalledOnNoDNS, Other: resource.MachineRef(m)})
	}
	return b
}

func (s *planSuite) link(linkType resource.LinkType, machine string) changes.Link {
	return changes.Link{From: s.www, Type: linkType, To: resource.MachineRef(machine)}
}

func (s *planSuite) TestWebsiteChangesSkipsSettledWebsite(c *gc.C) {
	ch, ok := cutover.WebsiteChanges(s.bucket([]string{"m1", "m2"}, nil), set.NewStrings("m2", "m1"))
	c.Check(ok, jc.IsFalse)
	c.Check(ch.IsEmpty(), jc.IsTrue)
}

func (s *planSuite) TestWebsiteChangesDoesNotSkipWithNoDNSMarkers(c *gc.C) {
	ch, ok := cutover.WebsiteChanges(s.bucket([]string{"m2"}, []string{"m1"}), set.NewStrings("m2"))
	c.Check(ok, jc.IsTrue)
	c.Check(ch.IsEmpty(), jc.IsTrue)
}

func (s *planSuite) TestWebsiteChangesThreeWay(c *gc.C) {
	ch, ok := cutover.WebsiteChanges(s.bucket([]string{"m1", "m2"}, nil), set.NewStrings("m2", "m3"))
	c.Assert(ok, jc.IsTrue)
	c.Check(ch.LinksToDelete, jc.DeepEquals, []changes.Link{
		s.link(resource.InstalledOn, "m1"),
	})
	c.Check(ch.LinksToAdd, jc.DeepEquals, []changes.Link{
		s.link(resource.InstalledOnNoDNS, "m1"),
		s.link(resource.InstalledOn, "m3"),
	})
}

func (s *planSuite) TestWebsiteChangesKeepsSetsDisjoint(c *gc.C) {
	ch, ok := cutover.WebsiteChanges(s.bucket([]string{"m1"}, []string{"m2", "m3"}), set.NewStrings("m2"))
	c.Assert(ok, jc.IsTrue)
	c.Check(ch.LinksToDelete, jc.DeepEquals, []changes.Link{
		s.link(resource.InstalledOn, "m1"),
		s.link(resource.InstalledOnNoDNS, "m2"),
	})
	c.Check(ch.LinksToAdd, jc.DeepEquals, []changes.Link{
		s.link(resource.InstalledOnNoDNS, "m1"),
		s.link(resource.InstalledOn, "m2"),
	})
}

func (s *planSuite) TestWebsiteChangesAlreadyNoDNSIsNotAddedAgain(c *gc.C) {
	ch, ok := cutover.WebsiteChanges(s.bucket([]string{"m1"}, []string{"m1"}), set.NewStrings("m2"))
	c.Assert(ok, jc.IsTrue)
	c.Check(ch.LinksToAdd, jc.DeepEquals, []changes.Link{
		s.link(resource.InstalledOn, "m2"),
	})
}

func (s *planSuite) TestNoDNSChanges(c *gc.C) {
	ch := cutover.NoDNSChanges(s.bucket([]string{"m2"}, []string{"m3", "m1"}))
	c.Check(ch.LinksToAdd, gc.HasLen, 0)
	c.Check(ch.LinksToDelete, jc.DeepEquals, []changes.Link{
		s.link(resource.InstalledOnNoDNS, "m1"),
		s.link(resource.InstalledOnNoDNS, "m3"),
	})
}

func (s *planSuite) TestRedirectionChangesConverge(c *gc.C) {
	b := s.bucket([]string{"m1", "m2"}, []string{"m4"})
	desired := set.NewStrings("m2", "m3")

	ch := cutover.RedirectionChanges(b, desired)
	c.Check(ch.LinksToDelete, jc.DeepEquals, []changes.Link{
		s.link(resource.InstalledOnNoDNS, "m4"),
		s.link(resource.InstalledOn, "m1"),
	})
	c.Check(ch.LinksToAdd, jc.DeepEquals, []changes.Link{
		s.link(resource.InstalledOn, "m3"),
	})

	settled := s.bucket([]string{"m2", "m3"}, nil)
	c.Check(cutover.RedirectionChanges(settled, desired).IsEmpty(), jc.IsTrue)
}
