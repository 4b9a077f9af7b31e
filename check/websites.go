// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package check verifies that the installed websites answer.
package check

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"golang.org/x/sync/errgroup"
	"gopkg.in/httprequest.v1"

	"github.com/juju/relocate/api/graph"
	"github.com/juju/relocate/core/progress"
	"github.com/juju/relocate/core/resource"
)

var logger = loggo.GetLogger("relocate.check")

const (
	// DefaultTimeout bounds a single website request.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency is the number of websites checked at the same
	// time.
	DefaultConcurrency = 10
)

// successCodes are the statuses of a website that answers. Redirects
// are not followed.
var successCodes = map[int]bool{
	http.StatusOK:               true,
	http.StatusMovedPermanently: true,
	http.StatusFound:            true,
	http.StatusUnauthorized:     true,
}

// Target is a URL served by a website.
type Target struct {
	URL     string
	Website string
}

// Result is the outcome of the request to a target.
type Result struct {
	Target

	Success bool

	// Status is the HTTP status, zero when there was no response.
	Status int

	// Reason is the status text, or the error when there was no
	// response.
	Reason string

	Duration time.Duration
}

// Config holds the dependencies of a Checker.
type Config struct {
	Clock clock.Clock

	// Doer sends the requests. When nil, an HTTP client that does not
	// follow redirects and times out after DefaultTimeout is used.
	Doer httprequest.Doer

	// Concurrency defaults to DefaultConcurrency.
	Concurrency int
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Concurrency < 0 {
		return errors.NotValidf("negative Concurrency")
	}
	return nil
}

// Checker requests websites.
type Checker struct {
	config Config
}

// NewChecker returns a Checker for the configuration.
func NewChecker(config Config) (*Checker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.Doer == nil {
		config.Doer = &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if config.Concurrency == 0 {
		config.Concurrency = DefaultConcurrency
	}
	return &Checker{config: config}, nil
}

// Targets returns one target per domain name of every website
// installed on at least one machine.
func Targets(websites []resource.Bucket) []Target {
	var targets []Target
	for _, b := range websites {
		if len(b.To(resource.InstalledOn, resource.MachineType)) == 0 {
			continue
		}
		website, ok := b.Resource.Details.(resource.Website)
		if !ok {
			continue
		}
		scheme := "http://"
		if website.HTTPS {
			scheme = "https://"
		}
		for _, name := range website.DomainNames {
			targets = append(targets, Target{URL: scheme + name, Website: b.Resource.Name})
		}
	}
	return targets
}

// CheckInstalledWebsites checks every website installed on at least one
// machine.
func (c *Checker) CheckInstalledWebsites(ctx context.Context, g graph.Client) ([]Result, error) {
	websites, err := g.FindAllWithDetails(ctx, resource.WebsiteType)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return c.Check(ctx, Targets(websites)), nil
}

// Check requests every target and returns the results, failures first.
func (c *Checker) Check(ctx context.Context, targets []Target) []Result {
	results := make([]Result, len(targets))
	var eg errgroup.Group
	eg.SetLimit(c.config.Concurrency)
	for i, t := range targets {
		i, t := i, t
		eg.Go(func() error {
			results[i] = c.check(ctx, t)
			return nil
		})
	}
	_ = eg.Wait()
	SortResults(results)
	return results
}

func (c *Checker) check(ctx context.Context, t Target) (result Result) {
	result.Target = t
	start := c.config.Clock.Now()
	defer func() {
		result.Duration = c.config.Clock.Now().Sub(start)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		result.Reason = err.Error()
		return result
	}
	resp, err := c.config.Doer.Do(req)
	if err != nil {
		logger.Debugf("%s: %v", t.URL, err)
		result.Reason = err.Error()
		return result
	}
	_ = resp.Body.Close()
	result.Status = resp.StatusCode
	result.Reason = http.StatusText(resp.StatusCode)
	result.Success = successCodes[resp.StatusCode]
	return result
}

// SortResults puts failures first, then orders by status, duration,
// URL and website.
func SortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Success != b.Success {
			return !a.Success
		}
		if a.Status != b.Status {
			return a.Status < b.Status
		}
		if a.Duration != b.Duration {
			return a.Duration < b.Duration
		}
		if a.URL != b.URL {
			return a.URL < b.URL
		}
		return a.Website < b.Website
	})
}

// Print writes one line per result, followed by the reason of failures.
func Print(out progress.Output, results []Result) {
	for _, r := range results {
		status := "OK"
		if !r.Success {
			status = "ERROR"
		}
		out.Infof("[%s] [%d] [%dms] %s (%s)", status, r.Status, r.Duration.Milliseconds(), r.URL, r.Website)
		if !r.Success {
			out.Infof("\t%s", r.Reason)
		}
	}
}
