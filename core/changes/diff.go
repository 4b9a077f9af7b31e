// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package changes

import (
	"github.com/juju/collections/set"
)

// Delta is the three way comparison of a current and a desired set.
type Delta struct {
	// Keep holds the elements in both sets.
	Keep set.Strings

	// Remove holds the elements only in the current set.
	Remove set.Strings

	// Add holds the elements only in the desired set.
	Add set.Strings
}

// Diff compares the current set to the desired one.
func Diff(current, desired set.Strings) Delta {
	return Delta{
		Keep:   current.Intersection(desired),
		Remove: current.Difference(desired),
		Add:    desired.Difference(current),
	}
}

// IsEmpty reports whether the current set already equals the desired
// set.
func (d Delta) IsEmpty() bool {
	return d.Remove.IsEmpty() && d.Add.IsEmpty()
}

// Apply returns the set obtained by applying the delta to current.
func (d Delta) Apply(current set.Strings) set.Strings {
	return current.Difference(d.Remove).Union(d.Add)
}
