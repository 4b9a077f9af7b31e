// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package evacuate_test

import (
	"bytes"
	"context"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4/workertest"
	gc "gopkg.in/check.v1"

	"github.com/juju/relocate/api/graph/graphtesting"
	"github.com/juju/relocate/core/progress"
	"github.com/juju/relocate/core/resource"
	"github.com/juju/relocate/cutover"
	"github.com/juju/relocate/evacuate"
	"github.com/juju/relocate/inventory"
	"github.com/juju/relocate/migration"
	"github.com/juju/relocate/profile"
)

// fakeMigrator moves bob and app1 the way a successful migration
// would, and fails carol.
type fakeMigrator struct {
	*testing.Stub
	graph     *graphtesting.Graph
	bob, app1 resource.Resource
}

func (f *fakeMigrator) MigrateAll(ctx context.Context, pair profile.Pair, source, target string, stopOnFailure bool) (migration.Report, error) {
	f.MethodCall(f, "MigrateAll", source, target, stopOnFailure)
	if err := f.NextErr(); err != nil {
		return nil, err
	}
	for _, r := range []resource.Resource{f.bob, f.app1} {
		f.graph.Unlink(r, resource.InstalledOn, resource.MachineRef(source))
		f.graph.Link(r, resource.InstalledOn, resource.MachineRef(target))
	}
	carolErr := errors.New("carol: first file sync: rsync failed")
	return migration.Report{
		{Account: "bob", Status: migration.StatusOK},
		{Account: "carol", Status: "ERROR - " + carolErr.Error(), Err: carolErr},
	}, nil
}

type evacuateSuite struct {
	testing.IsolationSuite

	graph     *graphtesting.Graph
	clock     *testclock.Clock
	registry  *cutover.Registry
	migrator  *fakeMigrator
	evacuator *evacuate.Evacuator
	out       bytes.Buffer
	websites  map[string]resource.Resource
}

var _ = gc.Suite(&evacuateSuite{})

func (s *evacuateSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.graph = graphtesting.New()
	s.clock = testclock.NewClock(time.Now())
	s.out.Reset()
	s.websites = make(map[string]resource.Resource)
	output := progress.NewWriter(&s.out)

	var err error
	s.registry, err = cutover.NewRegistry()
	c.Assert(err, jc.ErrorIsNil)
	s.AddCleanup(func(c *gc.C) { workertest.CleanKill(c, s.registry) })
	orchestrator, err := cutover.NewOrchestrator(cutover.Config{
		Graph:    s.graph,
		Clock:    s.clock,
		Output:   output,
		Registry: s.registry,
	})
	c.Assert(err, jc.ErrorIsNil)

	m1 := s.graph.AddMachine("m1")
	s.graph.AddMachine("m2")

	bob := s.add(resource.UnixUserType, resource.UnixUser{Name: "bob"}, m1)
	app1 := s.add(resource.ApplicationType, resource.Application{Name: "app1"}, m1)
	s.graph.Link(app1, resource.RunAs, bob)
	carol := s.add(resource.UnixUserType, resource.UnixUser{Name: "carol"}, m1)
	app2 := s.add(resource.ApplicationType, resource.Application{Name: "app2"}, m1)
	s.graph.Link(app2, resource.RunAs, carol)

	// example.com follows app1 to m2, carol.com stays with app2 on m1
	// and legacy.com has no application so it goes to the target.
	s.addDomain("example.com", "www", &app1, m1)
	s.addDomain("carol.com", "blog", &app2, m1)
	s.addDomain("legacy.com", "legacy", nil, m1)

	s.migrator = &fakeMigrator{Stub: &testing.Stub{}, graph: s.graph, bob: bob, app1: app1}
	s.evacuator, err = evacuate.NewEvacuator(evacuate.Config{
		Graph:    s.graph,
		Accounts: s.migrator,
		Cutover:  orchestrator,
		Output:   output,
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *evacuateSuite) add(t resource.Type, details resource.Details, machines ...resource.Resource) resource.Resource {
	r := s.graph.Add(resource.New("", t, details))
	for _, m := range machines {
		s.graph.Link(r, resource.InstalledOn, m)
	}
	return r
}

func (s *evacuateSuite) addDomain(domain, website string, app *resource.Resource, machine resource.Resource) resource.Resource {
	d := s.add(resource.DomainType, resource.Domain{Name: domain})
	w := s.add(resource.WebsiteType, resource.Website{Name: website, DomainNames: []string{domain}}, machine)
	s.graph.Link(d, resource.Manages, w)
	s.websites[website] = w
	if app != nil {
		s.graph.Link(w, resource.PointsTo, *app)
	}
	return w
}

func (s *evacuateSuite) website(c *gc.C, name string) resource.Resource {
	r, ok := s.websites[name]
	c.Assert(ok, jc.IsTrue)
	return r
}

// move runs the evacuation, letting the finalize delay pass for the
// given number of cutovers.
func (s *evacuateSuite) move(c *gc.C, cutovers int) (evacuate.Report, error) {
	type result struct {
		report evacuate.Report
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := s.evacuator.MoveAllFromMachine(context.Background(), profile.Pair{}, "m1", "m2")
		done <- result{report, err}
	}()
	if cutovers > 0 {
		c.Assert(s.clock.WaitAdvance(cutover.DefaultFinalizeDelay, testing.LongWait, cutovers), jc.ErrorIsNil)
	}
	select {
	case r := <-done:
		return r.report, r.err
	case <-time.After(testing.LongWait):
		c.Fatalf("evacuation did not finish")
	}
	panic("unreachable")
}

func (s *evacuateSuite) TestDomainsOn(c *gc.C) {
	domains, err := evacuate.DomainsOn(context.Background(), s.graph, "m1")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(domains, jc.DeepEquals, []string{"carol.com", "example.com", "legacy.com"})

	domains, err = evacuate.DomainsOn(context.Background(), s.graph, "m2")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(domains, gc.HasLen, 0)
}

func (s *evacuateSuite) TestMoveAllFromMachine(c *gc.C) {
	report, err := s.move(c, 3)
	c.Assert(err, jc.ErrorIsNil)

	s.migrator.CheckCall(c, 0, "MigrateAll", "m1", "m2", false)
	c.Check(report.Accounts.Failed(), jc.DeepEquals, []string{"carol"})
	c.Check(report.Domains, jc.DeepEquals, []evacuate.DomainResult{
		{Domain: "carol.com", Status: "OK"},
		{Domain: "example.com", Status: "OK"},
		{Domain: "legacy.com", Status: "OK"},
	})

	c.Check(s.graph.MachinesOf(s.website(c, "www"), resource.InstalledOn), jc.DeepEquals, []string{"m2"})
	c.Check(s.graph.MachinesOf(s.website(c, "legacy"), resource.InstalledOn), jc.DeepEquals, []string{"m2"})
	c.Check(s.graph.MachinesOf(s.website(c, "blog"), resource.InstalledOn), jc.DeepEquals, []string{"m1"})
	for _, name := range []string{"www", "legacy", "blog"} {
		c.Check(s.graph.MachinesOf(s.website(c, name), resource.InstalledOnNoDNS), gc.HasLen, 0)
	}

	remaining := make(map[string][]string)
	for _, g := range report.Remaining.Groups {
		remaining[g.Account] = g.Resources
	}
	c.Check(remaining, jc.DeepEquals, map[string][]string{
		"carol":             {"Application app2"},
		inventory.NoAccount: {"Unix User carol", "Website blog"},
	})

	out := s.out.String()
	c.Check(out, jc.Contains, "\n---> Processing domain legacy.com\nCutover of domain legacy.com to m2\n")
	c.Check(out, jc.Contains, "\nWaiting for 3 domains to be finalized\n")
	c.Check(out, jc.Contains, "\n---[ Domains summary ]---\n[OK] carol.com\n[OK] example.com\n[OK] legacy.com\n")
	c.Check(out, jc.Contains, "\n===[ Resources still on m1 ]===\n")
}

func (s *evacuateSuite) TestFailedCutoverDoesNotStopTheOthers(c *gc.C) {
	// mixed.com is served by applications on both machines.
	www := s.website(c, "www")
	blog := s.website(c, "blog")
	mixed := s.add(resource.DomainType, resource.Domain{Name: "mixed.com"})
	s.graph.Link(mixed, resource.Manages, www)
	s.graph.Link(mixed, resource.Manages, blog)

	report, err := s.move(c, 3)
	c.Assert(err, jc.ErrorIsNil)

	c.Assert(report.Domains, gc.HasLen, 4)
	c.Check(report.Domains[3].Domain, gc.Equals, "mixed.com")
	c.Check(errors.Is(report.Domains[3].Err, cutover.ErrInconsistentApplicationPlacement), jc.IsTrue)
	c.Check(report.Domains[3].Status, gc.Matches, "ERROR - .*inconsistent application placement")
	c.Check(s.out.String(), jc.Contains, "[ERROR - ")
	c.Check(report.Domains[2], jc.DeepEquals, evacuate.DomainResult{Domain: "legacy.com", Status: "OK"})
}

func (s *evacuateSuite) TestStoppedRegistryFailsTheDomains(c *gc.C) {
	s.registry.Kill()

	report, err := s.move(c, 0)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(report.Domains, gc.HasLen, 3)
	for _, d := range report.Domains {
		c.Check(d.Err, gc.NotNil)
		c.Check(d.Status, gc.Matches, "ERROR - .*")
	}
}

func (s *evacuateSuite) TestAccountListingFailure(c *gc.C) {
	s.migrator.SetErrors(errors.New("graph is down"))

	_, err := s.move(c, 0)
	c.Check(err, gc.ErrorMatches, "graph is down")
	c.Check(s.graph.Applied(), gc.HasLen, 0)
}

func (s *evacuateSuite) TestConfigValidate(c *gc.C) {
	_, err := evacuate.NewEvacuator(evacuate.Config{Graph: s.graph, Accounts: s.migrator, Output: progress.Discard})
	c.Check(err, jc.ErrorIs, errors.NotValid)
	c.Check(err, gc.ErrorMatches, "nil Cutover not valid")
}
