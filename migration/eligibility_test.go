// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package migration_test

import (
	"context"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/relocate/core/progress"
	"github.com/juju/relocate/core/resource"
	"github.com/juju/relocate/migration"
)

type eligibilitySuite struct {
	baseSuite
}

var _ = gc.Suite(&eligibilitySuite{})

func (s *eligibilitySuite) check(c *gc.C, account string) (migration.Eligibility, error) {
	checker := migration.NewChecker(s.graph, progress.NewWriter(&s.out))
	return checker.Check(context.Background(), s.pair, "m1", account)
}

func (s *eligibilitySuite) TestEligible(c *gc.C) {
	bob := s.addAccount("bob", "acme", s.m1)
	app2 := s.addApplication("app2", bob, s.m1)
	app1 := s.addApplication("app1", bob, s.m1, s.m2)
	php := s.addManager(resource.ApachePHPType, "php1", app1, s.m1)
	db := s.addManager(resource.MariaDBServerType, "db2", app2, s.m1)
	other := s.addApplication("other", bob, s.m2)
	s.addManager(resource.ApachePHPType, "php-other", other, s.m2)

	e, err := s.check(c, "bob")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(e.Account.ID, gc.Equals, bob.ID)
	c.Check(e.Machines, jc.DeepEquals, []string{"m1"})
	c.Check(e.ApplicationNames(), jc.DeepEquals, []string{"app1", "app2"})
	c.Check(e.Managers(), jc.DeepEquals, []resource.Resource{php, db})
	c.Check(e.Applications[0].Application.ID, gc.Equals, app1.ID)

	c.Check(s.out.String(), gc.Equals, ""+
		"Unix user bob is installed on machines:\n"+
		"\tm1\n"+
		"Unix user bob is used by applications:\n"+
		"\tapp1\n"+
		"\t\tis installed on machines:\n"+
		"\t\t\tm1\n"+
		"\t\t\tm2\n"+
		"\t\tis managed by:\n"+
		"\t\t\t[OK] Resource Type: Apache PHP\n"+
		"\tapp2\n"+
		"\t\tis installed on machines:\n"+
		"\t\t\tm1\n"+
		"\t\tis managed by:\n"+
		"\t\t\t[OK] Resource Type: MariaDB Server\n"+
		"\tother\n"+
		"\t\tis installed on machines:\n"+
		"\t\t\tm2\n"+
		"\t\t[SKIP] Not installed on the source machine\n",
	)
	for _, call := range s.stub.Calls() {
		c.Check(call.FuncName, gc.Not(gc.Equals), "ApplyChanges")
	}
}

func (s *eligibilitySuite) TestProfileMismatch(c *gc.C) {
	s.pair.Target.Name = "staging"
	s.pair.Target.InfraBaseURL = "https://staging.example.com"
	_, err := s.check(c, "bob")
	c.Check(errors.Is(err, migration.ErrProfileMismatch), jc.IsTrue)
	c.Check(s.stub.Calls(), gc.HasLen, 0)
}

func (s *eligibilitySuite) TestSameBackendDifferentNames(c *gc.C) {
	s.addAccount("bob", "acme", s.m1)
	s.pair.Target.Name = "prod-admin"
	_, err := s.check(c, "bob")
	c.Check(err, jc.ErrorIsNil)
}

func (s *eligibilitySuite) TestAccountNotFound(c *gc.C) {
	_, err := s.check(c, "nobody")
	c.Check(errors.Is(err, migration.ErrAccountNotFound), jc.IsTrue)
	c.Check(err, gc.ErrorMatches, `"nobody": account not found`)
}

func (s *eligibilitySuite) TestAccountNotOnSource(c *gc.C) {
	s.addAccount("bob", "acme", s.m2)
	_, err := s.check(c, "bob")
	c.Check(errors.Is(err, migration.ErrAccountNotOnSource), jc.IsTrue)
}

func (s *eligibilitySuite) TestApplicationUnmanaged(c *gc.C) {
	bob := s.addAccount("bob", "acme", s.m1)
	s.addApplication("app1", bob, s.m1)
	_, err := s.check(c, "bob")
	c.Check(errors.Is(err, migration.ErrApplicationUnmanaged), jc.IsTrue)
	c.Check(s.out.String(), jc.Contains, "[STOP] The application is not managed by any known resource type")
}

func (s *eligibilitySuite) TestApplicationAmbiguouslyManaged(c *gc.C) {
	bob := s.addAccount("bob", "acme", s.m1)
	app1 := s.addApplication("app1", bob, s.m1)
	s.addManager(resource.ApachePHPType, "php1", app1, s.m1)
	s.addManager(resource.MariaDBServerType, "db1", app1, s.m1)

	_, err := s.check(c, "bob")
	c.Check(errors.Is(err, migration.ErrApplicationAmbiguouslyManaged), jc.IsTrue)
	c.Check(err, gc.ErrorMatches, `"app1": application is managed by more than one resource`)
	c.Check(s.out.String(), jc.Contains, "[STOP] The application is managed by more than 1 resource")
}

func (s *eligibilitySuite) TestUnsupportedManagerType(c *gc.C) {
	bob := s.addAccount("bob", "acme", s.m1)
	app1 := s.addApplication("app1", bob, s.m1)
	cron := s.graph.Add(resource.Resource{Type: "Cron Job", Name: "cron1", Owner: "acme", Details: resource.Generic{}})
	s.graph.Link(cron, resource.Manages, app1)

	_, err := s.check(c, "bob")
	c.Check(errors.Is(err, migration.ErrUnsupportedManagerType), jc.IsTrue)
	c.Check(s.out.String(), jc.Contains, "[NO] Doesn't know how to handle Resource Type: Cron Job")
}

func (s *eligibilitySuite) TestAllApplicationsInspectedFirstProblemReported(c *gc.C) {
	bob := s.addAccount("bob", "acme", s.m1)
	s.addApplication("app1", bob, s.m1)
	app2 := s.addApplication("app2", bob, s.m1)
	s.addManager(resource.ApachePHPType, "php2", app2, s.m1)
	s.addManager(resource.ApachePHPType, "php3", app2, s.m1)

	_, err := s.check(c, "bob")
	c.Check(errors.Is(err, migration.ErrApplicationUnmanaged), jc.IsTrue)
	c.Check(s.out.String(), jc.Contains, "\tapp2\n")
	c.Check(s.out.String(), jc.Contains, "[STOP] The application is managed by more than 1 resource")
}
