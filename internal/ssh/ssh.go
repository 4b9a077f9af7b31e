// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package ssh runs commands on managed machines and copies account
// files between them.
package ssh

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/pkg/sftp"
	gossh "golang.org/x/crypto/ssh"
)

var logger = loggo.GetLogger("relocate.ssh")

// Credential authenticates a login. When both are set the private key
// is tried first.
type Credential struct {
	// PrivateKeyFile is the path of a PEM encoded private key.
	PrivateKeyFile string

	// PrivateKey is a PEM encoded private key. It takes precedence over
	// PrivateKeyFile.
	PrivateKey []byte

	Password string
}

// Key returns the PEM encoded private key of the credential, reading it
// from disk if needed.
func (c Credential) Key() ([]byte, error) {
	if len(c.PrivateKey) > 0 {
		return c.PrivateKey, nil
	}
	if c.PrivateKeyFile == "" {
		return nil, errors.NotFoundf("private key")
	}
	data, err := os.ReadFile(c.PrivateKeyFile)
	if err != nil {
		return nil, errors.Annotatef(err, "reading private key %q", c.PrivateKeyFile)
	}
	return data, nil
}

// Login describes how to open a session on a machine.
type Login struct {
	Host       string
	Port       int
	User       string
	Credential Credential
}

// Address returns the host:port to dial.
func (l Login) Address() string {
	port := l.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(l.Host, strconv.Itoa(port))
}

// Result is the outcome of a remote command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Session is an authenticated channel to one machine.
type Session interface {
	// Exec runs the command and waits for it. A non-zero exit code is
	// reported in the Result, not as an error.
	Exec(ctx context.Context, command string) (Result, error)

	// Put writes content to remotePath. The file is created with the
	// given mode before anything is written to it.
	Put(ctx context.Context, content []byte, remotePath string, mode os.FileMode) error

	// Remove deletes remotePath.
	Remove(ctx context.Context, remotePath string) error

	Close() error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context, login Login) (Session, error)
}

// NewDialer returns a Dialer using SSH for commands and SFTP for files.
// Host keys are not verified: machines are reinstalled often and their
// keys are not tracked anywhere.
func NewDialer(timeout time.Duration) Dialer {
	return &dialer{timeout: timeout}
}

type dialer struct {
	timeout time.Duration
}

// Dial implements Dialer.
func (d *dialer) Dial(ctx context.Context, login Login) (Session, error) {
	auth, err := authMethods(login.Credential)
	if err != nil {
		return nil, errors.Trace(err)
	}
	config := &gossh.ClientConfig{
		User:            login.User,
		Auth:            auth,
		HostKeyCallback: gossh.InsecureIgnoreHostKey(),
		Timeout:         d.timeout,
	}

	netDialer := net.Dialer{Timeout: d.timeout}
	conn, err := netDialer.DialContext(ctx, "tcp", login.Address())
	if err != nil {
		return nil, errors.Annotatef(err, "connecting to %s", login.Address())
	}
	clientConn, chans, reqs, err := gossh.NewClientConn(conn, login.Address(), config)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Annotatef(err, "ssh handshake with %s@%s", login.User, login.Address())
	}
	logger.Debugf("connected to %s@%s", login.User, login.Address())
	return &session{host: login.Host, client: gossh.NewClient(clientConn, chans, reqs)}, nil
}

func authMethods(cred Credential) ([]gossh.AuthMethod, error) {
	var methods []gossh.AuthMethod
	if len(cred.PrivateKey) > 0 || cred.PrivateKeyFile != "" {
		key, err := cred.Key()
		if err != nil {
			return nil, errors.Trace(err)
		}
		signer, err := gossh.ParsePrivateKey(key)
		if err != nil {
			return nil, errors.Annotate(err, "parsing private key")
		}
		methods = append(methods, gossh.PublicKeys(signer))
	}
	if cred.Password != "" {
		methods = append(methods, gossh.Password(cred.Password))
	}
	if len(methods) == 0 {
		return nil, errors.NotValidf("credential without private key or password")
	}
	return methods, nil
}

type session struct {
	host   string
	client *gossh.Client
}

// Exec implements Session.
func (s *session) Exec(ctx context.Context, command string) (Result, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return Result{}, errors.Annotatef(err, "opening session on %s", s.host)
	}
	defer func() { _ = sess.Close() }()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	logger.Tracef("running on %s: %s", s.host, command)
	if err := sess.Start(command); err != nil {
		return Result{}, errors.Annotatef(err, "starting %q on %s", command, s.host)
	}
	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = sess.Signal(gossh.SIGTERM)
		return Result{}, errors.Annotatef(ctx.Err(), "running %q on %s", command, s.host)
	}

	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	var exitErr *gossh.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitStatus()
	default:
		return result, errors.Annotatef(err, "running %q on %s", command, s.host)
	}
	return result, nil
}

// Put implements Session.
func (s *session) Put(ctx context.Context, content []byte, remotePath string, mode os.FileMode) error {
	client, err := sftp.NewClient(s.client)
	if err != nil {
		return errors.Annotatef(err, "opening sftp on %s", s.host)
	}
	defer func() { _ = client.Close() }()

	f, err := client.Create(remotePath)
	if err != nil {
		return errors.Annotatef(err, "creating %s on %s", remotePath, s.host)
	}
	defer func() { _ = f.Close() }()
	if err := client.Chmod(remotePath, mode); err != nil {
		return errors.Annotatef(err, "changing mode of %s on %s", remotePath, s.host)
	}
	if _, err := io.Copy(f, bytes.NewReader(content)); err != nil {
		return errors.Annotatef(err, "writing %s on %s", remotePath, s.host)
	}
	return errors.Trace(f.Close())
}

// Remove implements Session.
func (s *session) Remove(ctx context.Context, remotePath string) error {
	client, err := sftp.NewClient(s.client)
	if err != nil {
		return errors.Annotatef(err, "opening sftp on %s", s.host)
	}
	defer func() { _ = client.Close() }()
	return errors.Annotatef(client.Remove(remotePath), "removing %s on %s", remotePath, s.host)
}

// Close implements Session.
func (s *session) Close() error {
	return s.client.Close()
}

// ExitError is returned when a remote command exits with a non-zero
// code.
type ExitError struct {
	Host    string
	Command string
	Result  Result
}

// stderrTailLines is how much of stderr an ExitError reports.
const stderrTailLines = 5

// Error implements error.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%q on %s exited with code %d", e.Command, e.Host, e.Result.ExitCode)
	if tail := tailLines(e.Result.Stderr, stderrTailLines); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func tailLines(s string, n int) string {
	lines := bytes.Split(bytes.TrimRight([]byte(s), "\n"), []byte("\n"))
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return string(bytes.TrimSpace(bytes.Join(lines, []byte("\n"))))
}
