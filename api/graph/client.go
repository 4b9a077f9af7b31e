// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package graph provides a client for the resource graph service that
// holds the machines, accounts, applications and websites of the
// infrastructure, and the links between them.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gopkg.in/httprequest.v1"

	"github.com/juju/relocate/core/changes"
	"github.com/juju/relocate/core/resource"
)

var logger = loggo.GetLogger("relocate.api.graph")

// Client is the subset of the resource graph used to relocate
// workloads.
type Client interface {
	// FindOne returns the single resource of type t whose properties
	// match. It returns a NotFound error if there is none.
	FindOne(ctx context.Context, t resource.Type, properties map[string]string) (resource.Resource, error)

	// FindByID returns the resource with the given id and its links.
	FindByID(ctx context.Context, id string) (resource.Bucket, error)

	// FindAllWithDetails returns every resource of type t with its
	// links.
	FindAllWithDetails(ctx context.Context, t resource.Type) ([]resource.Bucket, error)

	// ApplyChanges applies the changes in a single transaction.
	ApplyChanges(ctx context.Context, c changes.Changes) (changes.Applied, error)
}

// Error is an error reported by the graph service.
type Error struct {
	Timestamp string `json:"timestamp"`
	UniqueID  string `json:"uniqueId"`
	Message   string `json:"message"`
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("%s %s : %s", e.Timestamp, e.UniqueID, e.Message)
}

// Config holds the parameters of an HTTP client.
type Config struct {
	// BaseURL is the root URL of the graph service.
	BaseURL string

	// User and Key are the API credentials.
	User string
	Key  string

	// HTTPClient is used to send requests. http.DefaultClient is used
	// when it is nil.
	HTTPClient *http.Client
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.NotValidf("empty BaseURL")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return errors.NotValidf("BaseURL %q", c.BaseURL)
	}
	if c.User == "" {
		return errors.NotValidf("empty User")
	}
	return nil
}

// HTTPClient talks to the graph service over HTTP.
type HTTPClient struct {
	client httprequest.Client
}

var _ Client = (*HTTPClient)(nil)

// NewClient returns a client for the graph service described by cfg.
func NewClient(cfg Config) (*HTTPClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	doer := cfg.HTTPClient
	if doer == nil {
		doer = http.DefaultClient
	}
	return &HTTPClient{
		client: httprequest.Client{
			BaseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
			Doer: &basicAuthDoer{
				doer:     doer,
				user:     cfg.User,
				password: cfg.Key,
			},
			UnmarshalError: httprequest.ErrorUnmarshaler(new(Error)),
		},
	}, nil
}

// basicAuthDoer adds a basic auth header to every request.
type basicAuthDoer struct {
	doer     httprequest.Doer
	user     string
	password string
}

func (d *basicAuthDoer) Do(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(d.user, d.password)
	return d.doer.Do(req)
}

// checkResponse turns an unsuccessful response into an error.
func checkResponse(resp Response) error {
	if resp.Error != nil {
		return resp.Error
	}
	if !resp.Success {
		return errors.New("graph service reported a failure without details")
	}
	return nil
}

// FindOne implements Client.
func (c *HTTPClient) FindOne(ctx context.Context, t resource.Type, properties map[string]string) (resource.Resource, error) {
	var resp FindOneResponse
	req := &findOneRequest{
		Body: ResourceFilter{ResourceType: string(t), PropertyEquals: properties},
	}
	if err := c.client.Call(ctx, req, &resp); err != nil {
		return resource.Resource{}, errors.Annotatef(err, "finding %s %v", t, properties)
	}
	if resp.Error != nil {
		return resource.Resource{}, errors.Annotatef(resp.Error, "finding %s %v", t, properties)
	}
	if resp.Item == nil {
		return resource.Resource{}, errors.NotFoundf("%s %v", t, properties)
	}
	return decodeDetails(*resp.Item)
}

// FindByID implements Client.
func (c *HTTPClient) FindByID(ctx context.Context, id string) (resource.Bucket, error) {
	var resp FindByIDResponse
	if err := c.client.Call(ctx, &findByIDRequest{ID: id}, &resp); err != nil {
		return resource.Bucket{}, errors.Annotatef(err, "finding resource %q", id)
	}
	if resp.Error != nil {
		return resource.Bucket{}, errors.Annotatef(resp.Error, "finding resource %q", id)
	}
	if resp.Item == nil {
		return resource.Bucket{}, errors.NotFoundf("resource %q", id)
	}
	return decodeBucket(*resp.Item)
}

// FindAllWithDetails implements Client.
func (c *HTTPClient) FindAllWithDetails(ctx context.Context, t resource.Type) ([]resource.Bucket, error) {
	var resp FindAllResponse
	req := &findAllWithDetailsRequest{
		Body: ResourceFilter{ResourceType: string(t)},
	}
	if err := c.client.Call(ctx, req, &resp); err != nil {
		return nil, errors.Annotatef(err, "listing %s resources", t)
	}
	if err := checkResponse(resp.Response); err != nil {
		return nil, errors.Annotatef(err, "listing %s resources", t)
	}
	buckets := make([]resource.Bucket, 0, len(resp.Items))
	for _, item := range resp.Items {
		b, err := decodeBucket(item)
		if err != nil {
			return nil, errors.Trace(err)
		}
		buckets = append(buckets, b)
	}
	logger.Tracef("found %d %s resources", len(buckets), t)
	return buckets, nil
}

// ApplyChanges implements Client.
func (c *HTTPClient) ApplyChanges(ctx context.Context, ch changes.Changes) (changes.Applied, error) {
	body, err := encodeChanges(ch)
	if err != nil {
		return changes.Applied{}, errors.Trace(err)
	}
	var resp ApplyChangesResponse
	if err := c.client.Call(ctx, &applyChangesRequest{Body: body}, &resp); err != nil {
		return changes.Applied{}, errors.Trace(err)
	}
	if err := checkResponse(resp.Response); err != nil {
		return changes.Applied{}, errors.Trace(err)
	}
	logger.Debugf("applied changes in transaction %s", resp.TxID)
	return decodeApplied(resp), nil
}

func decodeDetails(d ResourceDetails) (resource.Resource, error) {
	return resource.Decode(resource.Type(d.ResourceType), d.Resource)
}

func decodeBucket(b ResourceBucket) (resource.Bucket, error) {
	r, err := decodeDetails(b.ResourceDetails)
	if err != nil {
		return resource.Bucket{}, errors.Trace(err)
	}
	bucket := resource.Bucket{Resource: r}
	if bucket.LinksFrom, err = decodePartialLinks(b.LinksFrom); err != nil {
		return resource.Bucket{}, errors.Annotatef(err, "links to %s", r)
	}
	if bucket.LinksTo, err = decodePartialLinks(b.LinksTo); err != nil {
		return resource.Bucket{}, errors.Annotatef(err, "links from %s", r)
	}
	return bucket, nil
}

func decodePartialLinks(links []PartialLinkDetails) ([]resource.PartialLink, error) {
	out := make([]resource.PartialLink, 0, len(links))
	for _, l := range links {
		other, err := decodeDetails(l.OtherResource)
		if err != nil {
			return nil, errors.Trace(err)
		}
		out = append(out, resource.PartialLink{
			Type:  resource.LinkType(l.LinkType),
			Other: other,
		})
	}
	return out, nil
}

func encodeDetails(r resource.Resource) (ResourceDetails, error) {
	raw, err := json.Marshal(resource.Encode(r))
	if err != nil {
		return ResourceDetails{}, errors.Annotatef(err, "encoding %s", r)
	}
	return ResourceDetails{ResourceType: string(r.Type), Resource: raw}, nil
}

func encodeLinks(links []changes.Link) ([]LinkDetails, error) {
	out := make([]LinkDetails, 0, len(links))
	for _, l := range links {
		from, err := encodeDetails(l.From)
		if err != nil {
			return nil, errors.Trace(err)
		}
		to, err := encodeDetails(l.To)
		if err != nil {
			return nil, errors.Trace(err)
		}
		out = append(out, LinkDetails{From: from, LinkType: string(l.Type), To: to})
	}
	return out, nil
}

func encodeChanges(ch changes.Changes) (RequestChanges, error) {
	var (
		req RequestChanges
		err error
	)
	req.DefaultOwner = ch.DefaultOwner
	if req.LinksToAdd, err = encodeLinks(ch.LinksToAdd); err != nil {
		return RequestChanges{}, errors.Trace(err)
	}
	if req.LinksToDelete, err = encodeLinks(ch.LinksToDelete); err != nil {
		return RequestChanges{}, errors.Trace(err)
	}
	req.ResourcesToUpdate = make([]ResourceToUpdate, 0, len(ch.ResourcesToUpdate))
	for _, u := range ch.ResourcesToUpdate {
		current, err := encodeDetails(u.Current)
		if err != nil {
			return RequestChanges{}, errors.Trace(err)
		}
		updated, err := encodeDetails(u.Updated)
		if err != nil {
			return RequestChanges{}, errors.Trace(err)
		}
		req.ResourcesToUpdate = append(req.ResourcesToUpdate, ResourceToUpdate{
			ResourceDetails:        current,
			UpdatedResourceDetails: updated,
		})
	}
	return req, nil
}

func decodeApplied(resp ApplyChangesResponse) changes.Applied {
	applied := changes.Applied{
		TxID:            resp.TxID,
		TotalAuditItems: resp.AuditItems.Pagination.TotalItems,
	}
	for _, item := range resp.AuditItems.Items {
		applied.AuditItems = append(applied.AuditItems, changes.AuditItem{
			Action:   item.Action,
			Type:     item.Type,
			First:    item.ResourceFirst,
			Second:   item.ResourceSecond,
			LinkType: item.LinkType,
			TagName:  item.TagName,
		})
	}
	return applied
}

// FindBucket returns the single resource of type t whose properties
// match, along with its links.
func FindBucket(ctx context.Context, client Client, t resource.Type, properties map[string]string) (resource.Bucket, error) {
	r, err := client.FindOne(ctx, t, properties)
	if err != nil {
		return resource.Bucket{}, errors.Trace(err)
	}
	b, err := client.FindByID(ctx, r.ID)
	return b, errors.Trace(err)
}

// FindMachine returns the named machine along with its links.
func FindMachine(ctx context.Context, client Client, name string) (resource.Bucket, error) {
	b, err := FindBucket(ctx, client, resource.MachineType, map[string]string{"name": name})
	return b, errors.Annotatef(err, "machine %q", name)
}
