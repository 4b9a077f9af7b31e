// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package ssh

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"github.com/kballard/go-shellquote"
)

// ErrUserNotPresent is returned when an account does not show up on a
// machine before the provisioning timeout.
const ErrUserNotPresent = errors.ConstError("user not present")

const (
	// DefaultPollDelay is the time between two checks for an account.
	DefaultPollDelay = 10 * time.Second

	// DefaultProvisionTimeout bounds the wait for an account.
	DefaultProvisionTimeout = 15 * time.Minute
)

// LoginFunc returns the login to use for a machine.
type LoginFunc func(machine string) (Login, error)

// Config holds the dependencies of a Remote.
type Config struct {
	Dialer Dialer
	Clock  clock.Clock

	// SourceLogin and TargetLogin return the login for machines of the
	// source and target infrastructures.
	SourceLogin LoginFunc
	TargetLogin LoginFunc

	PollDelay        time.Duration
	ProvisionTimeout time.Duration
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Dialer == nil {
		return errors.NotValidf("nil Dialer")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.SourceLogin == nil {
		return errors.NotValidf("nil SourceLogin")
	}
	if c.TargetLogin == nil {
		return errors.NotValidf("nil TargetLogin")
	}
	if c.PollDelay < 0 {
		return errors.NotValidf("negative PollDelay")
	}
	if c.ProvisionTimeout < 0 {
		return errors.NotValidf("negative ProvisionTimeout")
	}
	return nil
}

// Side selects the infrastructure a machine belongs to.
type Side int

const (
	Source Side = iota
	Target
)

func (s Side) String() string {
	if s == Target {
		return "target"
	}
	return "source"
}

// Remote runs commands and copies files on the machines of a source
// and a target infrastructure. A session is opened for every operation.
type Remote struct {
	config Config
}

// NewRemote returns a Remote for the configuration.
func NewRemote(config Config) (*Remote, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.PollDelay == 0 {
		config.PollDelay = DefaultPollDelay
	}
	if config.ProvisionTimeout == 0 {
		config.ProvisionTimeout = DefaultProvisionTimeout
	}
	return &Remote{config: config}, nil
}

func (r *Remote) login(side Side, machine string) (Login, error) {
	loginFor := r.config.SourceLogin
	if side == Target {
		loginFor = r.config.TargetLogin
	}
	login, err := loginFor(machine)
	return login, errors.Annotatef(err, "login for %s machine %s", side, machine)
}

func (r *Remote) withSession(ctx context.Context, side Side, machine string, f func(Login, Session) error) error {
	login, err := r.login(side, machine)
	if err != nil {
		return errors.Trace(err)
	}
	sess, err := r.config.Dialer.Dial(ctx, login)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Debugf("closing session on %s: %v", machine, err)
		}
	}()
	return f(login, sess)
}

// Exec runs the command on the machine. A non-zero exit code is
// returned as an *ExitError.
func (r *Remote) Exec(ctx context.Context, side Side, machine, command string) (Result, error) {
	var result Result
	err := r.withSession(ctx, side, machine, func(_ Login, sess Session) error {
		var err error
		result, err = execChecked(ctx, sess, machine, command)
		return err
	})
	return result, errors.Trace(err)
}

func execChecked(ctx context.Context, sess Session, machine, command string) (Result, error) {
	result, err := sess.Exec(ctx, command)
	if err != nil {
		return result, errors.Trace(err)
	}
	if result.ExitCode != 0 {
		return result, &ExitError{Host: machine, Command: command, Result: result}
	}
	return result, nil
}

// WaitUserPresent polls the target machine until the account exists
// there. It gives up after the provisioning timeout, or as soon as ctx
// is done.
func (r *Remote) WaitUserPresent(ctx context.Context, machine, user string) error {
	command := shellquote.Join("getent", "passwd", user)
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			_, err := r.Exec(ctx, Target, machine, command)
			return err
		},
		IsFatalError: func(err error) bool {
			return ctx.Err() != nil
		},
		NotifyFunc: func(lastErr error, attempt int) {
			logger.Debugf("%s not yet on %s (attempt %d): %v", user, machine, attempt, lastErr)
		},
		Delay:       r.config.PollDelay,
		MaxDuration: r.config.ProvisionTimeout,
		Clock:       r.config.Clock,
		Stop:        ctx.Done(),
	})
	switch {
	case err == nil:
		logger.Debugf("%s is present on %s", user, machine)
		return nil
	case ctx.Err() != nil:
		return errors.Annotatef(ctx.Err(), "waiting for %s on %s", user, machine)
	case retry.IsDurationExceeded(err):
		return errors.Annotatef(ErrUserNotPresent, "%s on %s after %v (last error: %v)",
			user, machine, r.config.ProvisionTimeout, retry.LastError(err))
	}
	return errors.Annotatef(err, "waiting for %s on %s", user, machine)
}

// SyncSpec describes a one way mirror of a directory from a source
// machine to a target machine.
type SyncSpec struct {
	SourceMachine string
	SourcePath    string
	TargetMachine string
	TargetPath    string

	// Owner, when set, owns every synced file on the target.
	Owner string
}

// SyncFiles mirrors the source directory to the target one. rsync runs
// on the source machine and reaches the target with a one time copy of
// the target private key, removed once rsync is done.
func (r *Remote) SyncFiles(ctx context.Context, spec SyncSpec) error {
	targetLogin, err := r.login(Target, spec.TargetMachine)
	if err != nil {
		return errors.Trace(err)
	}
	key, err := targetLogin.Credential.Key()
	if err != nil {
		return errors.Annotatef(err, "syncing to %s needs a private key", spec.TargetMachine)
	}

	keyPath := path.Join("/tmp", uuid.NewString())
	return r.withSession(ctx, Source, spec.SourceMachine, func(_ Login, sess Session) (err error) {
		if err := sess.Put(ctx, key, keyPath, 0600); err != nil {
			return errors.Annotate(err, "installing transfer key")
		}
		defer func() {
			if rmErr := sess.Remove(ctx, keyPath); rmErr != nil {
				logger.Warningf("could not remove transfer key %s on %s: %v", keyPath, spec.SourceMachine, rmErr)
				if err == nil {
					err = errors.Annotate(rmErr, "removing transfer key")
				}
			}
		}()

		command := RsyncCommand(spec, targetLogin, keyPath)
		logger.Infof("syncing %s:%s to %s:%s", spec.SourceMachine, spec.SourcePath, spec.TargetMachine, spec.TargetPath)
		_, err = execChecked(ctx, sess, spec.SourceMachine, command)
		return errors.Trace(err)
	})
}

// RsyncCommand returns the rsync invocation mirroring spec, with
// deletion and compression, over ssh with the given key. Links,
// permissions and ownership are kept; spec.Owner overrides the owner.
func RsyncCommand(spec SyncSpec, target Login, keyPath string) string {
	remoteShell := []string{"ssh", "-o", "StrictHostKeyChecking=no", "-i", keyPath, "-l", target.User}
	if target.Port != 0 && target.Port != 22 {
		remoteShell = append(remoteShell, "-p", fmt.Sprint(target.Port))
	}
	args := []string{
		"/usr/bin/rsync",
		"--delay-updates",
		"--compress-level=9",
		"--delete",
	}
	if spec.Owner != "" {
		args = append(args, "--chown="+spec.Owner+":"+spec.Owner)
	}
	args = append(args,
		"-azve", strings.Join(remoteShell, " "),
		withTrailingSlash(spec.SourcePath),
		target.Host+":"+withTrailingSlash(spec.TargetPath),
	)
	return shellquote.Join(args...)
}

func withTrailingSlash(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p + "/"
}
