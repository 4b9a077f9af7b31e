// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package migration

import (
	"fmt"

	"github.com/juju/errors"
)

// Reasons an account cannot be migrated. They are reported before
// anything is changed.
const (
	ErrProfileMismatch               = errors.ConstError("source and target profiles use different resource graphs")
	ErrAccountNotFound               = errors.ConstError("account not found")
	ErrAccountNotOnSource            = errors.ConstError("account is not installed on the source machine")
	ErrApplicationUnmanaged          = errors.ConstError("application is not managed by any resource")
	ErrApplicationAmbiguouslyManaged = errors.ConstError("application is managed by more than one resource")
	ErrUnsupportedManagerType        = errors.ConstError("unsupported manager resource type")
)

// Step is one step of an account migration. Steps run in the order of
// their values.
type Step int

const (
	StepNone Step = iota
	StepInstallAccount
	StepWaitAccount
	StepFirstSync
	StepUnlinkApplications
	StepStopApplications
	StepFinalSync
	StepInstallApplications
	StepUnlinkAccount
)

var stepNames = map[Step]string{
	StepNone:                "none",
	StepInstallAccount:      "install account on target",
	StepWaitAccount:         "wait for account on target",
	StepFirstSync:           "first file sync",
	StepUnlinkApplications:  "remove applications from source",
	StepStopApplications:    "stop applications on source",
	StepFinalSync:           "final file sync",
	StepInstallApplications: "install applications on target",
	StepUnlinkAccount:       "remove account from source",
}

// String implements fmt.Stringer.
func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step %d", int(s))
}

// StepError reports the step an account migration failed at. The
// steps up to LastCompleted were applied and are not rolled back.
type StepError struct {
	Account       string
	Step          Step
	LastCompleted Step
	Err           error
}

// Error implements error.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s: %v (completed up to: %s)", e.Account, e.Step, e.Err, e.LastCompleted)
}

// Unwrap returns the cause of the failure.
func (e *StepError) Unwrap() error {
	return e.Err
}
