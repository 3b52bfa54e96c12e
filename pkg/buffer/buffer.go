// Package buffer implements the process-wide memory coordinator of
// spec.md §4.11 (component C2): a single Manager parameterized by a byte
// budget, tracking consumption per region and gating allocations by
// pressure level. Grounded on the reference codebase's runtime memory
// knobs (pkg/config's RuntimeLimit/GOMEMLIMIT/GCPercent settings) for the
// idea of a single tunable budget, generalized here into an active
// accounting coordinator rather than a passive Go-runtime hint.
package buffer

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"
)

// Region is one of the four consumption categories spec.md §4.11 tracks
// independently.
type Region int

const (
	GraphStorage Region = iota
	IndexBuffers
	ExecutionBuffers
	SpillStaging
)

func (r Region) String() string {
	switch r {
	case GraphStorage:
		return "GraphStorage"
	case IndexBuffers:
		return "IndexBuffers"
	case ExecutionBuffers:
		return "ExecutionBuffers"
	case SpillStaging:
		return "SpillStaging"
	default:
		return "UnknownRegion"
	}
}

// PressureLevel categorizes total usage against the budget, gating the
// allocation policy per spec.md §4.11's table.
type PressureLevel int

const (
	Normal PressureLevel = iota
	Moderate
	High
	Critical
)

func (p PressureLevel) String() string {
	switch p {
	case Normal:
		return "Normal"
	case Moderate:
		return "Moderate"
	case High:
		return "High"
	case Critical:
		return "Critical"
	default:
		return "UnknownPressureLevel"
	}
}

func levelFor(usedFrac float64) PressureLevel {
	switch {
	case usedFrac > 0.95:
		return Critical
	case usedFrac > 0.85:
		return High
	case usedFrac > 0.70:
		return Moderate
	default:
		return Normal
	}
}

var errOutOfMemory = fmt.Errorf("buffer: no allocation possible under Critical pressure")

// Consumer is a spillable participant registered with the Manager. Under
// Moderate/High/Critical pressure, the Manager calls Spill on the
// lowest-priority consumers first (spec.md §4.11: "calls spill() on
// lowest-priority consumers first").
type Consumer interface {
	Name() string
	// Priority ranks spill order; lower values spill first.
	Priority() int
	Spill() error
}

// Grant is a scoped accounting token: it does not own memory, it records
// that Manager has counted bytes against region until Release returns them.
type Grant struct {
	mgr    *Manager
	region Region
	bytes  uint64

	mu       sync.Mutex
	released bool
}

// Bytes reports the grant's size.
func (g *Grant) Bytes() uint64 { return g.bytes }

// Release returns the grant's bytes to its region. Idempotent.
func (g *Grant) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return
	}
	g.released = true
	g.mgr.release(g.region, g.bytes)
}

// CompositeGrant bundles several Grants so a caller can release them all
// at once, used when one logical allocation spans more than one region.
type CompositeGrant struct {
	grants []*Grant
}

// Release releases every sub-grant.
func (c *CompositeGrant) Release() {
	for _, g := range c.grants {
		g.Release()
	}
}

// TotalBytes sums every sub-grant's size.
func (c *CompositeGrant) TotalBytes() uint64 {
	var total uint64
	for _, g := range c.grants {
		total += g.Bytes()
	}
	return total
}

// AllocRequest is one leg of a composite allocation.
type AllocRequest struct {
	Bytes  uint64
	Region Region
}

// Manager is the process-wide budget coordinator. A single Manager is
// normally shared by every component of one open database.
type Manager struct {
	mu        sync.Mutex
	budget    uint64
	used      [4]uint64
	consumers []Consumer
	lastLevel PressureLevel
}

// NewManager creates a Manager with an explicit byte budget.
func NewManager(budget uint64) *Manager {
	return &Manager{budget: budget}
}

// NewManagerDefault creates a Manager budgeted at 75% of detected system
// memory, spec.md §4.11's default.
func NewManagerDefault() *Manager {
	return NewManager(DefaultBudget())
}

// Budget returns the manager's total byte budget.
func (m *Manager) Budget() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.budget
}

// Usage returns current consumption for region.
func (m *Manager) Usage(region Region) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used[region]
}

func (m *Manager) totalUsedLocked() uint64 {
	var total uint64
	for _, u := range m.used {
		total += u
	}
	return total
}

// Level reports the current pressure level.
func (m *Manager) Level() PressureLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return levelFor(float64(m.totalUsedLocked()) / float64(m.budget))
}

// RegisterConsumer adds c to the spill-priority roster.
func (m *Manager) RegisterConsumer(c Consumer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumers = append(m.consumers, c)
}

// UnregisterConsumer removes c from the roster.
func (m *Manager) UnregisterConsumer(c Consumer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.consumers {
		if existing == c {
			m.consumers = append(m.consumers[:i], m.consumers[i+1:]...)
			return
		}
	}
}

// consumersByPriorityLocked returns registered consumers, lowest priority
// (spilled first) to highest.
func (m *Manager) consumersByPriorityLocked() []Consumer {
	out := make([]Consumer, len(m.consumers))
	copy(out, m.consumers)
	sort.Slice(out, func(i, j int) bool { return out[i].Priority() < out[j].Priority() })
	return out
}

// TryAllocate attempts to grant bytes against region. Under Moderate/High
// pressure it first asks registered consumers to spill (best-effort,
// lowest-priority first); under Critical it forces spilling until the
// allocation fits or every consumer has been asked, at which point it
// blocks new allocations per spec.md §4.11.
func (m *Manager) TryAllocate(bytes uint64, region Region) (*Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	level := levelFor(float64(m.totalUsedLocked()) / float64(m.budget))
	m.logLevelChangeLocked(level)

	switch level {
	case Moderate, High:
		m.spillLocked(level, bytes)
	case Critical:
		if !m.forceSpillLocked(bytes) {
			return nil, errOutOfMemory
		}
	}

	if m.totalUsedLocked()+bytes > m.budget {
		return nil, errOutOfMemory
	}
	m.used[region] += bytes
	return &Grant{mgr: m, region: region, bytes: bytes}, nil
}

// TryAllocateComposite grants every request atomically: either all
// requests succeed, or none are applied.
func (m *Manager) TryAllocateComposite(reqs []AllocRequest) (*CompositeGrant, error) {
	grants := make([]*Grant, 0, len(reqs))
	for _, req := range reqs {
		g, err := m.TryAllocate(req.Bytes, req.Region)
		if err != nil {
			for _, acquired := range grants {
				acquired.Release()
			}
			return nil, err
		}
		grants = append(grants, g)
	}
	return &CompositeGrant{grants: grants}, nil
}

// spillLocked asks consumers, lowest priority first, to spill until
// pressure drops back to Normal or every consumer has been asked. Errors
// are logged and do not abort the grant — Moderate/High still grant per
// spec.md's "still grant" policy. m.mu is released while each Spill runs
// so a consumer can return its grants.
func (m *Manager) spillLocked(level PressureLevel, incoming uint64) {
	for _, c := range m.consumersByPriorityLocked() {
		if levelFor(float64(m.totalUsedLocked()+incoming)/float64(m.budget)) == Normal {
			return
		}
		m.mu.Unlock()
		err := c.Spill()
		m.mu.Lock()
		if err != nil {
			log.Printf("buffer: consumer %s spill failed under %s pressure: %v", c.Name(), level, err)
		}
	}
}

// forceSpillLocked asks every consumer, lowest priority first, to spill
// until the pending allocation would fit under budget. Returns false if
// even spilling every consumer leaves no room. m.mu is released while
// each Spill runs so a consumer can return its grants.
func (m *Manager) forceSpillLocked(incoming uint64) bool {
	for _, c := range m.consumersByPriorityLocked() {
		if m.totalUsedLocked()+incoming <= m.budget {
			return true
		}
		m.mu.Unlock()
		err := c.Spill()
		m.mu.Lock()
		if err != nil {
			log.Printf("buffer: consumer %s spill failed under Critical pressure: %v", c.Name(), err)
		}
	}
	return m.totalUsedLocked()+incoming <= m.budget
}

func (m *Manager) release(region Region, bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bytes > m.used[region] {
		m.used[region] = 0
	} else {
		m.used[region] -= bytes
	}
}

func (m *Manager) logLevelChangeLocked(level PressureLevel) {
	if level == m.lastLevel {
		return
	}
	m.lastLevel = level
	log.Printf("buffer: pressure level -> %s (used %s / budget %s)",
		level, humanize.Bytes(m.totalUsedLocked()), humanize.Bytes(m.budget))
}
