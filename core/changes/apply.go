// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package changes

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/juju/relocate/core/progress"
)

var logger = loggo.GetLogger("relocate.changes")

// AuditItem describes one modification the graph made while applying
// changes.
type AuditItem struct {
	Action   string
	Type     string
	First    string
	Second   string
	LinkType string
	TagName  string
}

// Applied is the outcome of a successful ApplyChanges call.
type Applied struct {
	TxID       string
	AuditItems []AuditItem

	// TotalAuditItems may be larger than len(AuditItems) when the
	// graph paginates the audit trail.
	TotalAuditItems int
}

// Applier applies a batch of changes to the resource graph.
type Applier interface {
	ApplyChanges(ctx context.Context, c Changes) (Applied, error)
}

// Apply splits the changes in owner scoped batches and applies them one
// after the other, reporting each outcome on out. It stops at the
// first failing batch; batches already applied stay applied.
func Apply(ctx context.Context, applier Applier, out progress.Output, description string, c Changes) error {
	batches, err := SplitByOwner(c)
	if err != nil {
		out.Infof("[ERROR] %s", description)
		out.Infof("\t%v", err)
		return errors.Trace(err)
	}
	for _, batch := range batches {
		label := description
		if batch.DefaultOwner != "" {
			label = description + " [owner " + batch.DefaultOwner + "]"
		}
		logger.Debugf("applying %d added, %d deleted links and %d updates as %q",
			len(batch.LinksToAdd), len(batch.LinksToDelete), len(batch.ResourcesToUpdate), batch.DefaultOwner)
		applied, err := applier.ApplyChanges(ctx, batch)
		if err != nil {
			out.Infof("[ERROR] %s", label)
			out.Infof("\t%v", err)
			return errors.Annotate(err, description)
		}
		Report(out, label, applied)
	}
	return nil
}

// Report prints the audit trail of applied changes.
func Report(out progress.Output, label string, applied Applied) {
	out.Infof("[SUCCESS] %s (%s)", label, applied.TxID)
	total := applied.TotalAuditItems
	if total < len(applied.AuditItems) {
		total = len(applied.AuditItems)
	}
	out.Infof("\tApplied modifications (%d/%d)", len(applied.AuditItems), total)
	for _, item := range applied.AuditItems {
		switch item.Type {
		case "LINK":
			out.Infof("\t\t%s %s %s -> %s -> %s", item.Action, item.Type, item.First, item.LinkType, item.Second)
		case "TAG":
			out.Infof("\t\t%s %s %s -> %s", item.Action, item.Type, item.First, item.TagName)
		default:
			if item.Second != "" {
				out.Infof("\t\t%s %s %s -> %s", item.Action, item.Type, item.First, item.Second)
			} else {
				out.Infof("\t\t%s %s %s", item.Action, item.Type, item.First)
			}
		}
	}
}
