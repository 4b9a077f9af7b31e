// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package graph

import (
	"encoding/json"

	"gopkg.in/httprequest.v1"
)

// ResourceDetails is a resource as carried on the wire: its type and
// its raw attributes.
type ResourceDetails struct {
	ResourceType string          `json:"resourceType"`
	Resource     json.RawMessage `json:"resource"`
}

// PartialLinkDetails is a link seen from one of its ends.
type PartialLinkDetails struct {
	LinkType      string          `json:"linkType"`
	OtherResource ResourceDetails `json:"otherResource"`
}

// ResourceBucket is a resource with the links going in and out of it.
type ResourceBucket struct {
	ResourceDetails ResourceDetails      `json:"resourceDetails"`
	LinksFrom       []PartialLinkDetails `json:"linksFrom"`
	LinksTo         []PartialLinkDetails `json:"linksTo"`
}

// LinkDetails is a complete link.
type LinkDetails struct {
	From     ResourceDetails `json:"from"`
	LinkType string          `json:"linkType"`
	To       ResourceDetails `json:"to"`
}

// ResourceToUpdate replaces the resource matching ResourceDetails with
// UpdatedResourceDetails.
type ResourceToUpdate struct {
	ResourceDetails        ResourceDetails `json:"resourceDetails"`
	UpdatedResourceDetails ResourceDetails `json:"updatedResourceDetails"`
}

// RequestChanges is the body of an applyChanges call.
type RequestChanges struct {
	LinksToAdd        []LinkDetails      `json:"linksToAdd"`
	LinksToDelete     []LinkDetails      `json:"linksToDelete"`
	ResourcesToUpdate []ResourceToUpdate `json:"resourcesToUpdate"`
	DefaultOwner      string             `json:"defaultOwner,omitempty"`
}

// ResourceFilter selects resources by type and property values.
type ResourceFilter struct {
	ResourceType   string            `json:"resourceType"`
	PropertyEquals map[string]string `json:"propertyEquals,omitempty"`
}

// Response holds the fields common to every response.
type Response struct {
	Success bool   `json:"success"`
	Error   *Error `json:"error,omitempty"`
}

// FindOneResponse is returned by resourceFindOne.
type FindOneResponse struct {
	Response
	Item *ResourceDetails `json:"item"`
}

// FindByIDResponse is returned by resourceFindById.
type FindByIDResponse struct {
	Response
	Item *ResourceBucket `json:"item"`
}

// FindAllResponse is returned by resourceFindAllWithDetails.
type FindAllResponse struct {
	Response
	Items []ResourceBucket `json:"items"`
}

// AuditItem is one entry of the audit trail of applied changes.
type AuditItem struct {
	Action         string `json:"action"`
	Type           string `json:"type"`
	ResourceFirst  string `json:"resourceFirst"`
	LinkType       string `json:"linkType,omitempty"`
	ResourceSecond string `json:"resourceSecond,omitempty"`
	TagName        string `json:"tagName,omitempty"`
}

// Pagination describes the page of a paginated list.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	ItemsPerPage int `json:"itemsPerPage"`
	TotalItems   int `json:"totalItems"`
}

// AuditItems is a page of audit items.
type AuditItems struct {
	Items      []AuditItem `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

// ApplyChangesResponse is returned by applyChanges.
type ApplyChangesResponse struct {
	Response
	TxID       string     `json:"txId"`
	AuditItems AuditItems `json:"auditItems"`
}

type findOneRequest struct {
	httprequest.Route `httprequest:"POST /api/resource/resourceFindOne"`
	Body              ResourceFilter `httprequest:",body"`
}

type findByIDRequest struct {
	httprequest.Route `httprequest:"GET /api/resource/resourceFindById/:id"`
	ID                string `httprequest:"id,path"`
}

type findAllWithDetailsRequest struct {
	httprequest.Route `httprequest:"POST /api/resource/resourceFindAllWithDetails"`
	Body              ResourceFilter `httprequest:",body"`
}

type applyChangesRequest struct {
	httprequest.Route `httprequest:"POST /api/resource/applyChanges"`
	Body              RequestChanges `httprequest:",body"`
}
