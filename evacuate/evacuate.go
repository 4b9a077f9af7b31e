// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package evacuate moves everything off a machine: its accounts and
// applications first, then the websites of its domains.
package evacuate

import (
	"context"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/juju/relocate/api/graph"
	"github.com/juju/relocate/core/progress"
	"github.com/juju/relocate/core/resource"
	"github.com/juju/relocate/cutover"
	"github.com/juju/relocate/inventory"
	"github.com/juju/relocate/migration"
	"github.com/juju/relocate/profile"
)

var logger = loggo.GetLogger("relocate.evacuate")

// AccountMigrator moves every account off a machine.
type AccountMigrator interface {
	MigrateAll(ctx context.Context, pair profile.Pair, source, target string, stopOnFailure bool) (migration.Report, error)
}

// DomainCutover moves the websites of a domain.
type DomainCutover interface {
	Cutover(ctx context.Context, domain, targetMachine string) (*cutover.Finalizer, error)
}

// Config holds the dependencies of an Evacuator.
type Config struct {
	Graph    graph.Client
	Accounts AccountMigrator
	Cutover  DomainCutover
	Output   progress.Output
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Graph == nil {
		return errors.NotValidf("nil Graph")
	}
	if c.Accounts == nil {
		return errors.NotValidf("nil Accounts")
	}
	if c.Cutover == nil {
		return errors.NotValidf("nil Cutover")
	}
	if c.Output == nil {
		return errors.NotValidf("nil Output")
	}
	return nil
}

// DomainResult is the outcome of the cutover of one domain.
type DomainResult struct {
	Domain string

	// Status is OK or "ERROR - <message>".
	Status string

	Err error
}

// Report is the outcome of an evacuation.
type Report struct {
	Accounts migration.Report
	Domains  []DomainResult

	// Remaining is what is still installed on the source machine and
	// needs the attention of an operator.
	Remaining inventory.Inventory
}

// Evacuator moves everything off a machine.
type Evacuator struct {
	config Config
}

// NewEvacuator returns an Evacuator for the configuration.
func NewEvacuator(config Config) (*Evacuator, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Evacuator{config: config}, nil
}

// DomainsOn returns the sorted names of the domains having a website
// served from the machine, with or without DNS.
func DomainsOn(ctx context.Context, g graph.Client, machine string) ([]string, error) {
	m, err := graph.FindMachine(ctx, g, machine)
	if err != nil {
		return nil, errors.Trace(err)
	}
	websites := append(
		m.From(resource.InstalledOn, resource.WebsiteType),
		m.From(resource.InstalledOnNoDNS, resource.WebsiteType)...,
	)
	domains := set.NewStrings()
	for _, ref := range websites {
		website, err := g.FindByID(ctx, ref.ID)
		if err != nil {
			return nil, errors.Annotatef(err, "finding website %q", ref.Name)
		}
		domains = domains.Union(set.NewStrings(resource.Names(website.From(resource.Manages, resource.DomainType))...))
	}
	return domains.SortedValues(), nil
}

// MoveAllFromMachine migrates every account of the source machine to
// the target machine, whatever the failures, then cuts over every
// domain served from the source machine. It waits for the cutovers to
// be finalized and reports what is left on the source machine. There
// is no rollback.
func (e *Evacuator) MoveAllFromMachine(ctx context.Context, pair profile.Pair, source, target string) (Report, error) {
	out := e.config.Output
	var report Report

	out.Infof("===[ Move the unix users ]===")
	accounts, err := e.config.Accounts.MigrateAll(ctx, pair, source, target, false)
	if err != nil {
		return report, errors.Trace(err)
	}
	report.Accounts = accounts

	out.Infof("\n===[ Cutover the domains ]===")
	domains, err := DomainsOn(ctx, e.config.Graph, source)
	if err != nil {
		return report, errors.Annotate(err, "listing domains")
	}
	var finalizers []*cutover.Finalizer
	for _, domain := range domains {
		out.Infof("\n---> Processing domain %s", domain)
		f, err := e.config.Cutover.Cutover(ctx, domain, target)
		if err != nil {
			out.Infof("[ERROR] %v", err)
			report.Domains = append(report.Domains, failed(domain, err))
			continue
		}
		finalizers = append(finalizers, f)
		report.Domains = append(report.Domains, DomainResult{Domain: domain, Status: migration.StatusOK})
	}

	if len(finalizers) > 0 {
		out.Infof("\nWaiting for %d domains to be finalized", len(finalizers))
	}
	for _, f := range finalizers {
		if err := f.Wait(); err != nil {
			logger.Errorf("finalize of %s: %v", f.Domain(), err)
		}
		if err := f.Err(); err != nil {
			for i := range report.Domains {
				if report.Domains[i].Domain == f.Domain() {
					report.Domains[i] = failed(f.Domain(), errors.Annotate(err, "finalize"))
				}
			}
		}
	}

	out.Infof("\n---[ Domains summary ]---")
	for _, d := range report.Domains {
		out.Infof("[%s] %s", d.Status, d.Domain)
	}

	out.Infof("\n===[ Resources still on %s ]===", source)
	report.Remaining, err = inventory.List(ctx, e.config.Graph, source, 0)
	if err != nil {
		return report, errors.Annotate(err, "listing remaining resources")
	}
	if report.Remaining.IsEmpty() {
		out.Infof("Nothing left")
	}
	report.Remaining.Print(out)
	return report, nil
}

func failed(domain string, err error) DomainResult {
	return DomainResult{Domain: domain, Status: "ERROR - " + err.Error(), Err: err}
}
