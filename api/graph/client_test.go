// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package graph_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/relocate/api/graph"
	"github.com/juju/relocate/core/changes"
	"github.com/juju/relocate/core/resource"
)

type clientSuite struct {
	testing.IsolationSuite

	server   *httptest.Server
	client   *graph.HTTPClient
	requests []recordedRequest
	reply    func(w http.ResponseWriter, path string)
}

type recordedRequest struct {
	method string
	path   string
	user   string
	key    string
	body   map[string]interface{}
}

var _ = gc.Suite(&clientSuite{})

func (s *clientSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.requests = nil
	s.reply = nil
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		user, key, _ := req.BasicAuth()
		recorded := recordedRequest{method: req.Method, path: req.URL.Path, user: user, key: key}
		if data, err := io.ReadAll(req.Body); err == nil && len(data) > 0 {
			_ = json.Unmarshal(data, &recorded.body)
		}
		s.requests = append(s.requests, recorded)
		w.Header().Set("Content-Type", "application/json")
		s.reply(w, req.URL.Path)
	}))
	s.AddCleanup(func(*gc.C) { s.server.Close() })

	var err error
	s.client, err = graph.NewClient(graph.Config{
		BaseURL: s.server.URL + "/",
		User:    "admin",
		Key:     "s3cret",
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *clientSuite) replyWith(body string) {
	s.reply = func(w http.ResponseWriter, _ string) {
		_, _ = io.WriteString(w, body)
	}
}

func (s *clientSuite) TestConfigValidate(c *gc.C) {
	_, err := graph.NewClient(graph.Config{User: "admin"})
	c.Check(err, jc.Satisfies, errors.IsNotValid)
	_, err = graph.NewClient(graph.Config{BaseURL: "ftp://example.com", User: "admin"})
	c.Check(err, gc.ErrorMatches, `BaseURL "ftp://example.com" not valid`)
	_, err = graph.NewClient(graph.Config{BaseURL: "https://example.com"})
	c.Check(err, gc.ErrorMatches, `empty User not valid`)
}

func (s *clientSuite) TestFindOne(c *gc.C) {
	s.replyWith(`{"success":true,"item":{"resourceType":"Unix User","resource":{
		"internalId":"u1","resourceName":"bob","name":"bob","homeFolder":"/home/bob",
		"meta":{"UI_OWNER":"acme"}}}}`)

	r, err := s.client.FindOne(context.Background(), resource.UnixUserType, map[string]string{"name": "bob"})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(r.ID, gc.Equals, "u1")
	c.Check(r.Owner, gc.Equals, "acme")
	c.Check(r.Details, jc.DeepEquals, resource.UnixUser{Name: "bob", HomeFolder: "/home/bob"})

	c.Assert(s.requests, gc.HasLen, 1)
	req := s.requests[0]
	c.Check(req.method, gc.Equals, "POST")
	c.Check(req.path, gc.Equals, "/api/resource/resourceFindOne")
	c.Check(req.user, gc.Equals, "admin")
	c.Check(req.key, gc.Equals, "s3cret")
	c.Check(req.body, jc.DeepEquals, map[string]interface{}{
		"resourceType":   "Unix User",
		"propertyEquals": map[string]interface{}{"name": "bob"},
	})
}

func (s *clientSuite) TestFindOneNotFound(c *gc.C) {
	s.replyWith(`{"success":true,"item":null}`)
	_, err := s.client.FindOne(context.Background(), resource.UnixUserType, map[string]string{"name": "nobody"})
	c.Check(err, jc.Satisfies, errors.IsNotFound)
}

func (s *clientSuite) TestFindByID(c *gc.C) {
	s.replyWith(`{"success":true,"item":{
		"resourceDetails":{"resourceType":"Application","resource":{"internalId":"a1","resourceName":"app1","name":"app1"}},
		"linksFrom":[{"linkType":"MANAGES","otherResource":{"resourceType":"Apache PHP","resource":{"internalId":"p1","resourceName":"php1"}}}],
		"linksTo":[
			{"linkType":"INSTALLED_ON","otherResource":{"resourceType":"Machine","resource":{"internalId":"m1","resourceName":"m1.example.com","name":"m1.example.com"}}},
			{"linkType":"RUN_AS","otherResource":{"resourceType":"Unix User","resource":{"internalId":"u1","resourceName":"bob"}}}
		]}}`)

	b, err := s.client.FindByID(context.Background(), "a1")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.requests[0].method, gc.Equals, "GET")
	c.Check(s.requests[0].path, gc.Equals, "/api/resource/resourceFindById/a1")
	c.Check(b.Resource.Name, gc.Equals, "app1")
	c.Check(b.MachinesFor(resource.InstalledOn).SortedValues(), jc.DeepEquals, []string{"m1.example.com"})
	c.Check(resource.Names(b.From(resource.Manages, resource.ApachePHPType)), jc.DeepEquals, []string{"php1"})
	c.Check(resource.Names(b.To(resource.RunAs, resource.UnixUserType)), jc.DeepEquals, []string{"bob"})
}

func (s *clientSuite) TestFindAllWithDetailsServiceError(c *gc.C) {
	s.replyWith(`{"success":false,"error":{"timestamp":"2026-01-02T03:04:05","uniqueId":"abc-123","message":"forbidden"}}`)
	_, err := s.client.FindAllWithDetails(context.Background(), resource.WebsiteType)
	c.Check(err, gc.ErrorMatches, `listing Website resources: 2026-01-02T03:04:05 abc-123 : forbidden`)
	var gerr *graph.Error
	c.Assert(errors.As(err, &gerr), jc.IsTrue)
	c.Check(gerr.UniqueID, gc.Equals, "abc-123")
}

func (s *clientSuite) TestHTTPErrorStatus(c *gc.C) {
	s.reply = func(w http.ResponseWriter, _ string) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"timestamp":"t","uniqueId":"u","message":"exploded"}`)
	}
	_, err := s.client.FindByID(context.Background(), "x")
	c.Check(err, gc.ErrorMatches, `finding resource "x": .*t u : exploded`)
}

func (s *clientSuite) TestApplyChanges(c *gc.C) {
	s.replyWith(`{"success":true,"txId":"tx-42","auditItems":{
		"items":[{"action":"ADD","type":"LINK","resourceFirst":"Unix User bob","linkType":"INSTALLED_ON","resourceSecond":"Machine m2"}],
		"pagination":{"totalItems":1}}}`)

	user := resource.New("u1", resource.UnixUserType, resource.UnixUser{Name: "bob"}).WithOwner("acme")
	var ch changes.Changes
	ch.DefaultOwner = "acme"
	ch.AddLink(user, resource.InstalledOn, resource.MachineRef("m2"))
	ch.DeleteLink(user, resource.InstalledOn, resource.MachineRef("m1"))

	applied, err := s.client.ApplyChanges(context.Background(), ch)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(applied, jc.DeepEquals, changes.Applied{
		TxID: "tx-42",
		AuditItems: []changes.AuditItem{{
			Action: "ADD", Type: "LINK", First: "Unix User bob", LinkType: "INSTALLED_ON", Second: "Machine m2",
		}},
		TotalAuditItems: 1,
	})

	body := s.requests[0].body
	c.Check(s.requests[0].path, gc.Equals, "/api/resource/applyChanges")
	c.Check(body["defaultOwner"], gc.Equals, "acme")
	added := body["linksToAdd"].([]interface{})
	c.Assert(added, gc.HasLen, 1)
	c.Check(added[0], jc.DeepEquals, map[string]interface{}{
		"from": map[string]interface{}{
			"resourceType": "Unix User",
			"resource": map[string]interface{}{
				"internalId":   "u1",
				"resourceName": "bob",
				"name":         "bob",
				"meta":         map[string]interface{}{"UI_OWNER": "acme"},
			},
		},
		"linkType": "INSTALLED_ON",
		"to": map[string]interface{}{
			"resourceType": "Machine",
			"resource":     map[string]interface{}{"resourceName": "m2", "name": "m2"},
		},
	})
	c.Check(body["linksToDelete"].([]interface{}), gc.HasLen, 1)
}

func (s *clientSuite) TestApplyChangesFailureWithoutDetails(c *gc.C) {
	s.replyWith(`{"success":false}`)
	_, err := s.client.ApplyChanges(context.Background(), changes.Changes{})
	c.Check(err, gc.ErrorMatches, "graph service reported a failure without details")
}
