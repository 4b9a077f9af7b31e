// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package migration

import (
	"context"
	"sort"

	"github.com/juju/errors"

	"github.com/juju/relocate/api/graph"
	"github.com/juju/relocate/core/resource"
	"github.com/juju/relocate/profile"
)

// Result statuses of an account in a fleet migration.
const (
	StatusOK      = "OK"
	StatusPending = "PENDING"
	statusError   = "ERROR"
)

// AccountResult is the outcome of the migration of one account.
type AccountResult struct {
	Account string

	// Status is OK, PENDING or "ERROR - <message>".
	Status string

	Err error
}

// Report holds the outcome of every account of a fleet migration, in
// the order they were processed.
type Report []AccountResult

// Failed returns the accounts that could not be migrated.
func (r Report) Failed() []string {
	var failed []string
	for _, result := range r {
		if result.Err != nil {
			failed = append(failed, result.Account)
		}
	}
	return failed
}

// AccountsOn returns the sorted names of the accounts installed on the
// machine.
func AccountsOn(ctx context.Context, g graph.Client, machine string) ([]string, error) {
	b, err := graph.FindMachine(ctx, g, machine)
	if err != nil {
		return nil, errors.Trace(err)
	}
	names := resource.Names(b.From(resource.InstalledOn, resource.UnixUserType))
	sort.Strings(names)
	return names, nil
}

// MigrateAll migrates every account installed on the source machine,
// one after the other, in name order. A failing account is recorded
// and, unless stopOnFailure is set, the next one is processed. The
// returned error is only about listing the accounts.
func (m *Migrator) MigrateAll(ctx context.Context, pair profile.Pair, source, target string, stopOnFailure bool) (Report, error) {
	out := m.config.Output
	accounts, err := AccountsOn(ctx, m.config.Graph, source)
	if err != nil {
		return nil, errors.Annotate(err, "listing accounts")
	}

	report := make(Report, len(accounts))
	for i, account := range accounts {
		report[i] = AccountResult{Account: account, Status: StatusPending}
	}

	for i, account := range accounts {
		out.Infof("\n---> Processing unix user %s", account)
		err := m.MigrateAccount(ctx, pair, source, target, account)
		if err == nil {
			report[i].Status = StatusOK
			continue
		}
		report[i].Status = statusError + " - " + err.Error()
		report[i].Err = err
		if stopOnFailure || ctx.Err() != nil {
			break
		}
	}

	out.Infof("\n---[ Summary ]---")
	for _, result := range report {
		out.Infof("[%s] %s", result.Status, result.Account)
	}
	return report, nil
}
