// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cutover

import (
	"github.com/juju/errors"
)

const (
	// ErrDomainNotFound is returned when the graph has no such domain.
	ErrDomainNotFound = errors.ConstError("domain not found")

	// ErrInconsistentApplicationPlacement is returned when the
	// applications behind the websites of a domain are not installed
	// on the same machines.
	ErrInconsistentApplicationPlacement = errors.ConstError("inconsistent application placement")

	// ErrAmbiguousRedirectionTarget is returned when a domain has no
	// application to follow and no target machine was given.
	ErrAmbiguousRedirectionTarget = errors.ConstError("ambiguous redirection target")

	// ErrNoTargetMachine is returned when the applications of a domain
	// are not installed on any machine.
	ErrNoTargetMachine = errors.ConstError("no target machine")

	// ErrFinalizeCancelled is recorded by a finalizer killed before its
	// delay expired.
	ErrFinalizeCancelled = errors.ConstError("finalize cancelled")
)
