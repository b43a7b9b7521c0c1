package flow

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IDGenerator mints node and edge ids.
type IDGenerator interface {
	NodeID() string
	// EdgeID returns an id derived from both endpoints and the creation
	// time, unique across repeated connect/disconnect of the same pair.
	EdgeID(source, target string) string
}

// UUIDGenerator gives nodes random UUIDs and edges an id of the form
// e<source>-<target>-<unix millis>. Edge timestamps are strictly
// increasing per generator, so two edges minted in the same millisecond
// still differ.
type UUIDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewUUIDGenerator returns a generator on the wall clock.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{now: time.Now}
}

func (g *UUIDGenerator) NodeID() string {
	return uuid.NewString()
}

func (g *UUIDGenerator) EdgeID(source, target string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now().UnixMilli()
	if ts <= g.last {
		ts = g.last + 1
	}
	g.last = ts
	return fmt.Sprintf("e%s-%s-%d", source, target, ts)
}
