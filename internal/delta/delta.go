// Package delta implements the change-report computation for collection
// synchronization: collapsing a change-log range into the final per-object
// outcome and classifying the survivors.
package delta

import (
	"errors"
	"fmt"

	"github.com/samber/mo"
)

// Op tags one change-log entry. The numeric values are persisted.
type Op int

const (
	OpAdded    Op = 1
	OpModified Op = 2
	OpDeleted  Op = 3
)

// Entry is one change-log row inside the queried token range.
type Entry struct {
	URI   string
	Token int64
	Op    Op
}

// Report lists the object names that changed between a client token and the
// current state. Token is the collection's current token, the baseline for
// the next sync.
type Report struct {
	Token    int64
	Added    []string
	Modified []string
	Deleted  []string
}

// ErrTooManyResults indicates a report exceeded the caller's result cap.
// Reports are never silently truncated: a partial page has no defined
// continuation point.
var ErrTooManyResults = errors.New("too many results")

// Collapse reduces an ascending-token change-log range to one entry per
// object name, keeping the last operation seen. An object modified then
// deleted within the range survives as deleted only. Order of first
// appearance is preserved.
func Collapse(entries []Entry) []Entry {
	idx := make(map[string]int, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if i, seen := idx[e.URI]; seen {
			out[i] = e
			continue
		}
		idx[e.URI] = len(out)
		out = append(out, e)
	}
	return out
}

// Build assembles the report for a collection whose current token is
// currentToken. An absent clientToken means initial sync: every live object
// is reported as added. Otherwise entries must hold the log rows in
// [clientToken, currentToken) ordered by token ascending. The report always
// carries currentToken as the next baseline, so consecutive syncs leave no
// gap and produce no duplicates.
func Build(currentToken int64, clientToken mo.Option[int64], live []string, entries []Entry, limit mo.Option[int]) (*Report, error) {
	report := &Report{Token: currentToken}

	if _, ok := clientToken.Get(); !ok {
		report.Added = append(report.Added, live...)
		if err := checkLimit(len(report.Added), limit); err != nil {
			return nil, err
		}
		return report, nil
	}

	collapsed := Collapse(entries)
	if err := checkLimit(len(collapsed), limit); err != nil {
		return nil, err
	}
	for _, e := range collapsed {
		switch e.Op {
		case OpAdded:
			report.Added = append(report.Added, e.URI)
		case OpModified:
			report.Modified = append(report.Modified, e.URI)
		case OpDeleted:
			report.Deleted = append(report.Deleted, e.URI)
		default:
			return nil, fmt.Errorf("unknown change operation %d for %q", e.Op, e.URI)
		}
	}
	return report, nil
}

func checkLimit(n int, limit mo.Option[int]) error {
	if lim, ok := limit.Get(); ok && n > lim {
		return fmt.Errorf("%w: %d results, limit %d", ErrTooManyResults, n, lim)
	}
	return nil
}
