// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package sshtesting provides test doubles for remote execution.
package sshtesting

import (
	"context"

	"github.com/juju/testing"

	"github.com/juju/relocate/internal/ssh"
)

// FakeRemote records remote operations on a Stub. Every operation
// returns the next error of the Stub.
type FakeRemote struct {
	*testing.Stub

	// Results are returned by Exec, keyed by command.
	Results map[string]ssh.Result
}

// NewFakeRemote returns a FakeRemote recording on stub. Sharing the
// stub with other fakes records the calls of all of them in order.
func NewFakeRemote(stub *testing.Stub) *FakeRemote {
	if stub == nil {
		stub = &testing.Stub{}
	}
	return &FakeRemote{Stub: stub, Results: make(map[string]ssh.Result)}
}

// Exec records the command.
func (r *FakeRemote) Exec(ctx context.Context, side ssh.Side, machine, command string) (ssh.Result, error) {
	r.MethodCall(r, "Exec", side, machine, command)
	return r.Results[command], r.NextErr()
}

// WaitUserPresent records the wait.
func (r *FakeRemote) WaitUserPresent(ctx context.Context, machine, user string) error {
	r.MethodCall(r, "WaitUserPresent", machine, user)
	return r.NextErr()
}

// SyncFiles records the sync.
func (r *FakeRemote) SyncFiles(ctx context.Context, spec ssh.SyncSpec) error {
	r.MethodCall(r, "SyncFiles", spec)
	return r.NextErr()
}
