// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"os"

	"github.com/juju/cmd/v3"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("relocate.cmd")

const relocateDoc = `
relocate moves Unix accounts, their applications and the websites
pointing to them from one machine to another, keeping the resource
graph of the infrastructure in step.

Connection details are read from named profiles, see add-profile.
The source and target profiles default to $RELOCATE_PROFILE.
`

// NewRelocateCommand returns the super command holding every relocate
// command, wired to the environment.
func NewRelocateCommand(env *environ) *cmd.SuperCommand {
	relocate := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:      "relocate",
		Doc:       relocateDoc,
		Log:       &cmd.Log{DefaultConfig: os.Getenv(LoggingConfigEnvKey)},
		NotifyRun: func(name string) { logger.Debugf("running %s", name) },
	})
	relocate.Register(newMoveAccountCommand(env))
	relocate.Register(newMoveAllAccountsCommand(env))
	relocate.Register(newCutoverDomainCommand(env))
	relocate.Register(newMoveMachineCommand(env))
	relocate.Register(newMachineResourcesCommand(env))
	relocate.Register(newCheckWebsitesCommand(env))
	relocate.Register(newChangeOwnerCommand(env))
	relocate.Register(newAddProfileCommand(env))
	relocate.Register(newProfilesCommand(env))
	return relocate
}

// Main runs the relocate command and returns its exit code.
func Main(args []string) int {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	return cmd.Main(NewRelocateCommand(defaultEnviron()), ctx, args[1:])
}

func main() {
	os.Exit(Main(os.Args))
}
