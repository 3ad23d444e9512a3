package filter

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/gitlines/pkg/backend"
)

// ErrInvalidPeriod is returned by ParsePeriod.
var ErrInvalidPeriod = errors.New("invalid period")

const periodLayout = "2006-01"

// Period is a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse(periodLayout, s)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q, want YYYY-MM", ErrInvalidPeriod, s)
	}

	return PeriodOf(t), nil
}

// PeriodOf returns the month t falls in, in t's location.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Before reports whether p is earlier than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}

	return p.Month < o.Month
}

// IsZero reports whether p is unset.
func (p Period) IsZero() bool {
	return p == Period{}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// MonthlyCutoff reports at most one commit per calendar month, starting at
// a cutoff month.
//
// The first commit met in a month claims that month. It is accepted when the
// month is not before Cutoff; either way every later commit of the same month
// is rejected. With most-recent-first traversal the claimed commit is the
// latest one of its month. A zero Cutoff accepts every month.
type MonthlyCutoff struct {
	Cutoff Period
	// Location is the time zone months are computed in. Nil means the commit
	// time's own location.
	Location *time.Location

	mu   sync.Mutex
	seen map[Period]struct{}
}

// NewMonthlyCutoff creates the filter.
func NewMonthlyCutoff(cutoff Period, loc *time.Location) *MonthlyCutoff {
	return &MonthlyCutoff{Cutoff: cutoff, Location: loc}
}

// IncludeCommit implements CommitFilter.
func (m *MonthlyCutoff) IncludeCommit(commit backend.Commit) (bool, error) {
	when := commit.When
	if m.Location != nil {
		when = when.In(m.Location)
	}

	period := PeriodOf(when)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.seen == nil {
		m.seen = make(map[Period]struct{})
	}

	if _, ok := m.seen[period]; ok {
		return false, nil
	}

	m.seen[period] = struct{}{}

	return !period.Before(m.Cutoff), nil
}

// Reset implements Stateful.
func (m *MonthlyCutoff) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seen = nil
}

// Seen returns how many months have been claimed.
func (m *MonthlyCutoff) Seen() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.seen)
}

// Window accepts commits whose time lies within [Since, Until]. A zero bound
// is open.
type Window struct {
	Since time.Time
	Until time.Time
}

// IncludeCommit implements CommitFilter.
func (w Window) IncludeCommit(commit backend.Commit) (bool, error) {
	if !w.Since.IsZero() && commit.When.Before(w.Since) {
		return false, nil
	}

	if !w.Until.IsZero() && commit.When.After(w.Until) {
		return false, nil
	}

	return true, nil
}
