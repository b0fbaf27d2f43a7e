// Package autokey bulk-generates accelerators for a ranked list of targets
// using a naming pattern. Generation is pure; callers feed the resulting
// assignments through the store and registry.
package autokey

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/switchkey/internal/accel"
	"github.com/dshills/switchkey/internal/store"
)

// Pattern names, matching the persisted AutoKeyPolicy.Pattern values.
const (
	PatternNumbers  = "numbers"
	PatternFunction = "function"
	PatternNumpad   = "numpad"
	PatternAzertyui = "azertyui"
	PatternCustom   = "custom"
)

// azertyuiKeys is the fixed 8-symbol alphabet, indexed by rank.
var azertyuiKeys = []string{"A", "Z", "E", "R", "T", "Y", "U", "I"}

// PatternExhaustedError reports a rank past the pattern's key range. The
// legacy behavior emitted an unusable placeholder label here instead.
type PatternExhaustedError struct {
	Pattern string
	Rank    int
}

func (e *PatternExhaustedError) Error() string {
	return fmt.Sprintf("auto-key pattern %q has no key for rank %d", e.Pattern, e.Rank)
}

// ErrUnknownPattern is returned for a pattern name outside the known set.
type ErrUnknownPattern struct {
	Pattern string
}

func (e *ErrUnknownPattern) Error() string {
	return fmt.Sprintf("unknown auto-key pattern %q", e.Pattern)
}

// AcceleratorFor produces the accelerator for a 1-based rank under the
// given pattern. template is only consulted for the custom pattern.
func AcceleratorFor(pattern, template string, rank int) (accel.Accelerator, error) {
	if rank < 1 {
		return accel.Accelerator{}, &PatternExhaustedError{Pattern: pattern, Rank: rank}
	}

	var spec string
	switch pattern {
	case PatternNumbers:
		if rank > 9 {
			return accel.Accelerator{}, &PatternExhaustedError{Pattern: pattern, Rank: rank}
		}
		spec = strconv.Itoa(rank)
	case PatternFunction:
		if rank > 12 {
			return accel.Accelerator{}, &PatternExhaustedError{Pattern: pattern, Rank: rank}
		}
		spec = "F" + strconv.Itoa(rank)
	case PatternNumpad:
		if rank > 9 {
			return accel.Accelerator{}, &PatternExhaustedError{Pattern: pattern, Rank: rank}
		}
		spec = "num" + strconv.Itoa(rank)
	case PatternAzertyui:
		if rank > len(azertyuiKeys) {
			return accel.Accelerator{}, &PatternExhaustedError{Pattern: pattern, Rank: rank}
		}
		spec = azertyuiKeys[rank-1]
	case PatternCustom:
		spec = strings.ReplaceAll(template, "{n}", strconv.Itoa(rank))
	default:
		return accel.Accelerator{}, &ErrUnknownPattern{Pattern: pattern}
	}

	return accel.Encode(spec)
}

// Target is one candidate for auto-key assignment.
type Target struct {
	Identity    store.Identity
	DisplayName string

	// Score orders targets; higher scores earn earlier keys.
	Score int
}

// Assignment is one generated (identity, accelerator) pair, or the reason
// the target was skipped.
type Assignment struct {
	Identity    store.Identity
	DisplayName string
	Accelerator accel.Accelerator

	// SkippedDuplicate marks a later occurrence of an identity already
	// assigned in this run. Duplicates are skipped rather than
	// overwritten so ranks stay dense.
	SkippedDuplicate bool

	// Err carries a per-target generation failure (pattern exhausted).
	Err error
}

// Result reports one generation run.
type Result struct {
	// Disabled is true when the policy is off; Assignments is empty.
	Disabled    bool
	Assignments []Assignment
}

// Assigned returns only the successful assignments.
func (r Result) Assigned() []Assignment {
	var out []Assignment
	for _, a := range r.Assignments {
		if !a.SkippedDuplicate && a.Err == nil {
			out = append(out, a)
		}
	}
	return out
}

// Generate produces one accelerator per distinct target under policy.
// Targets are stably sorted by score descending, ties broken by display
// name ascending, and ranks assigned densely in that order. A target
// past the pattern range gets an Assignment carrying PatternExhausted;
// generation continues for the rest.
func Generate(policy store.AutoKeyPolicy, targets []Target) Result {
	if !policy.Enabled {
		return Result{Disabled: true}
	}

	sorted := make([]Target, len(targets))
	copy(sorted, targets)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].DisplayName < sorted[j].DisplayName
	})

	res := Result{Assignments: make([]Assignment, 0, len(sorted))}
	seen := make(map[store.Identity]bool, len(sorted))
	rank := 0
	for _, target := range sorted {
		if seen[target.Identity] {
			res.Assignments = append(res.Assignments, Assignment{
				Identity:         target.Identity,
				DisplayName:      target.DisplayName,
				SkippedDuplicate: true,
			})
			continue
		}
		seen[target.Identity] = true
		rank++

		a, err := AcceleratorFor(policy.Pattern, policy.CustomTemplate, rank)
		res.Assignments = append(res.Assignments, Assignment{
			Identity:    target.Identity,
			DisplayName: target.DisplayName,
			Accelerator: a,
			Err:         err,
		})
	}
	return res
}
