// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package resource

import (
	"encoding/json"

	"github.com/juju/errors"
)

// Attribute names used by the graph in resource payloads.
const (
	attrInternalID   = "internalId"
	attrResourceName = "resourceName"
	attrMeta         = "meta"
	attrName         = "name"
)

// Decode turns a raw resource payload of the given type into a typed
// Resource.
func Decode(t Type, raw []byte) (Resource, error) {
	attrs := make(map[string]interface{})
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &attrs); err != nil {
			return Resource{}, errors.Annotatef(err, "decoding %q resource", t)
		}
	}
	return FromAttributes(t, attrs), nil
}

// FromAttributes builds a typed Resource from an already decoded
// attribute map. The map is retained, callers must not modify it
// afterwards.
func FromAttributes(t Type, attrs map[string]interface{}) Resource {
	r := Resource{
		ID:    stringAttr(attrs, attrInternalID),
		Type:  t,
		Name:  stringAttr(attrs, attrResourceName),
		attrs: attrs,
	}
	if meta, ok := attrs[attrMeta].(map[string]interface{}); ok {
		r.Owner, _ = meta[OwnerMetaKey].(string)
	}

	switch t {
	case MachineType:
		r.Details = Machine{Name: stringAttr(attrs, attrName)}
	case UnixUserType:
		r.Details = UnixUser{
			Name:       stringAttr(attrs, attrName),
			HomeFolder: stringAttr(attrs, "homeFolder"),
		}
	case ApplicationType:
		r.Details = Application{Name: stringAttr(attrs, attrName)}
	case WebsiteType:
		r.Details = Website{
			Name:        stringAttr(attrs, attrName),
			DomainNames: stringsAttr(attrs, "domainNames"),
			HTTPS:       boolAttr(attrs, "https"),
		}
	case URLRedirectionType:
		r.Details = URLRedirection{
			DomainName:    stringAttr(attrs, "domainName"),
			HTTPRedirect:  stringAttr(attrs, "httpRedirectToUrl"),
			HTTPSRedirect: stringAttr(attrs, "httpsRedirectToUrl"),
		}
	case DomainType:
		r.Details = Domain{Name: stringAttr(attrs, attrName)}
	default:
		if IsManagerType(t) {
			r.Details = Manager{Name: stringAttr(attrs, attrName)}
		} else {
			r.Details = Generic{}
		}
	}

	if r.Name == "" {
		r.Name = detailsName(r.Details)
	}
	return r
}

// Encode returns the payload to send to the graph for the resource.
// Attributes that were decoded are preserved, the id and owner are
// taken from the Resource fields.
func Encode(r Resource) map[string]interface{} {
	out := make(map[string]interface{}, len(r.attrs)+3)
	for k, v := range r.attrs {
		out[k] = v
	}
	if r.ID != "" {
		out[attrInternalID] = r.ID
	}
	if r.Name != "" {
		out[attrResourceName] = r.Name
	}
	if _, ok := out[attrName]; !ok {
		if name := detailsName(r.Details); name != "" {
			out[attrName] = name
		}
	}

	meta := make(map[string]interface{})
	if existing, ok := out[attrMeta].(map[string]interface{}); ok {
		for k, v := range existing {
			meta[k] = v
		}
	}
	if r.Owner != "" {
		meta[OwnerMetaKey] = r.Owner
	} else {
		delete(meta, OwnerMetaKey)
	}
	if len(meta) > 0 {
		out[attrMeta] = meta
	} else {
		delete(out, attrMeta)
	}
	return out
}

func detailsName(d Details) string {
	switch d := d.(type) {
	case Machine:
		return d.Name
	case UnixUser:
		return d.Name
	case Application:
		return d.Name
	case Website:
		return d.Name
	case URLRedirection:
		return d.DomainName
	case Domain:
		return d.Name
	case Manager:
		return d.Name
	}
	return ""
}

func stringAttr(attrs map[string]interface{}, key string) string {
	s, _ := attrs[key].(string)
	return s
}

func boolAttr(attrs map[string]interface{}, key string) bool {
	b, _ := attrs[key].(bool)
	return b
}

func stringsAttr(attrs map[string]interface{}, key string) []string {
	values, _ := attrs[key].([]interface{})
	var out []string
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
