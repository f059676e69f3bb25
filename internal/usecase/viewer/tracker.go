package viewer

import (
	"sort"
	"sync"
	"time"
)

const (
	DefaultTimeout = 60 * time.Second

	// maxReportedIdentifiers caps the ips slice in heartbeat responses.
	maxReportedIdentifiers = 10
)

// Tracker keeps a best-effort, in-memory count of recently-active dashboard
// viewers. State is process-local and resets on restart; identifiers may be
// shared behind NAT, so this is a liveness estimate, not a session registry.
type Tracker struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	timeout time.Duration
	now     func() time.Time
}

func NewTracker(timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{
		seen:    make(map[string]time.Time),
		timeout: timeout,
		now:     time.Now,
	}
}

// WithNow replaces the tracker clock. Tests use it to age entries.
func (t *Tracker) WithNow(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Heartbeat registers id as active, evicts entries older than the timeout,
// and reports the surviving count plus up to 10 identifiers ordered by most
// recent heartbeat. Upsert, eviction and snapshot run as one critical
// section; eviction is lazy, there is no background timer.
func (t *Tracker) Heartbeat(id string) (int, []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.seen[id] = now

	for key, last := range t.seen {
		if now.Sub(last) > t.timeout {
			delete(t.seen, key)
		}
	}

	ids := make([]string, 0, len(t.seen))
	for key := range t.seen {
		ids = append(ids, key)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := t.seen[ids[i]], t.seen[ids[j]]
		if ti.Equal(tj) {
			return ids[i] < ids[j]
		}
		return ti.After(tj)
	})
	if len(ids) > maxReportedIdentifiers {
		ids = ids[:maxReportedIdentifiers]
	}

	return len(t.seen), ids
}
