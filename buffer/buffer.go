package buffer

import (
	"strings"
	"sync"
	"time"

	"github.com/mjasion/greenhouse-gateway/types"
	"go.uber.org/zap"
)

const (
	// Capacity is the fixed number of buffered readings. Once full, new
	// readings overwrite the oldest slot regardless of its synced state:
	// under a backend outage longer than the buffer can absorb, the oldest
	// undelivered readings are silently dropped. Bounded memory is the
	// contract here, not lossless delivery.
	Capacity = 100

	// registryCapacity bounds the unique-node registry. Nodes observed
	// beyond this are silently not registered; the registry is a
	// best-effort sample, not a hard ledger.
	registryCapacity = 20

	// DefaultActiveWindow is the lookback used for the "active nodes"
	// counter when no explicit window is given.
	DefaultActiveWindow = 5 * time.Minute
)

// Token identifies a buffered entry returned by NextUnsynced. It carries the
// slot's generation so that acknowledging an entry that has since been
// overwritten is a no-op instead of marking an unrelated newer reading.
type Token struct {
	slot       int
	generation uint64
}

type entry struct {
	reading    types.Reading
	synced     bool
	generation uint64
}

// Buffer is a fixed-capacity overwrite-oldest ring of sensor readings, each
// tagged with a synced flag, plus a bounded registry of distinct node
// identifiers observed. Safe for concurrent use.
type Buffer struct {
	mu        sync.Mutex
	data      []entry
	head      int // next write position
	size      int // valid entries, saturates at Capacity
	gatewayID string
	nodes     []string
	logger    *zap.Logger
	now       func() uint64
}

// New creates an offline buffer for the given gateway identifier. Readings
// carrying the gateway's own identifier are buffered but never counted as
// sensor nodes.
func New(gatewayID string, logger *zap.Logger) *Buffer {
	return &Buffer{
		data:      make([]entry, Capacity),
		gatewayID: gatewayID,
		nodes:     make([]string, 0, registryCapacity),
		logger:    logger,
		now:       types.UptimeMillis,
	}
}

// Add inserts a reading. It always succeeds: when the buffer is full the
// logically oldest slot is overwritten, synced or not.
func (b *Buffer) Add(reading types.Reading) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.isGatewayNode(reading.NodeID) {
		b.registerNode(reading.NodeID)
	}

	e := &b.data[b.head]
	if b.size == Capacity {
		b.logger.Warn("ring buffer full, overwriting oldest entry",
			zap.Int("capacity", Capacity),
			zap.String("overwritten_node", e.reading.NodeID),
			zap.Bool("overwritten_synced", e.synced),
		)
		e.generation++
	}

	e.reading = reading
	e.synced = false

	b.head = (b.head + 1) % Capacity
	if b.size < Capacity {
		b.size++
	}
}

// NextUnsynced returns the oldest reading whose synced flag is false, with a
// token for acknowledging it. It does not mutate the buffer, so callers may
// retry it freely. The third result is false when every valid entry is synced.
func (b *Buffer) NextUnsynced() (types.Reading, Token, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	oldest := (b.head - b.size + Capacity) % Capacity
	for i := 0; i < b.size; i++ {
		idx := (oldest + i) % Capacity
		if !b.data[idx].synced {
			return b.data[idx].reading, Token{slot: idx, generation: b.data[idx].generation}, true
		}
	}
	return types.Reading{}, Token{}, false
}

// MarkSynced sets the synced flag for the entry the token refers to. It
// reports false, without touching the buffer, when the slot has been
// overwritten since the token was issued.
func (b *Buffer) MarkSynced(t Token) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t.slot < 0 || t.slot >= Capacity {
		return false
	}
	if b.data[t.slot].generation != t.generation {
		b.logger.Warn("stale sync token ignored",
			zap.Int("slot", t.slot),
			zap.Uint64("token_generation", t.generation),
			zap.Uint64("slot_generation", b.data[t.slot].generation),
		)
		return false
	}
	b.data[t.slot].synced = true
	return true
}

// Count returns the number of valid entries.
func (b *Buffer) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// UnsyncedCount returns the number of valid entries not yet confirmed delivered.
func (b *Buffer) UnsyncedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	oldest := (b.head - b.size + Capacity) % Capacity
	for i := 0; i < b.size; i++ {
		if !b.data[(oldest+i)%Capacity].synced {
			n++
		}
	}
	return n
}

// IsFull reports whether the buffer has reached capacity.
func (b *Buffer) IsFull() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size >= Capacity
}

// Latest returns the most recently added reading, if any.
func (b *Buffer) Latest() (types.Reading, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return types.Reading{}, false
	}
	idx := (b.head - 1 + Capacity) % Capacity
	return b.data[idx].reading, true
}

// UniqueNodeCount returns how many distinct sensor nodes have ever reported,
// excluding the gateway itself. Bounded by the registry capacity.
func (b *Buffer) UniqueNodeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.nodes)
}

// ActiveNodeCount returns how many distinct sensor nodes have a buffered
// reading within the given window of the current time. Recomputed by a full
// scan on each call; at most registryCapacity distinct nodes are counted.
func (b *Buffer) ActiveNodeCount(window time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return 0
	}

	now := b.now()
	windowMs := uint64(window / time.Millisecond)
	var cutoff uint64
	if now > windowMs {
		cutoff = now - windowMs
	}

	active := make([]string, 0, registryCapacity)
	oldest := (b.head - b.size + Capacity) % Capacity
	for i := 0; i < b.size; i++ {
		e := &b.data[(oldest+i)%Capacity]
		if b.isGatewayNode(e.reading.NodeID) {
			continue
		}
		if e.reading.Timestamp <= cutoff {
			continue
		}
		if !containsNode(active, e.reading.NodeID) && len(active) < registryCapacity {
			active = append(active, e.reading.NodeID)
		}
	}
	return len(active)
}

// ClearGatewayEntries removes any gateway identifiers that slipped into the
// node registry.
func (b *Buffer) ClearGatewayEntries() {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.nodes[:0]
	for _, n := range b.nodes {
		if !b.isGatewayNode(n) {
			kept = append(kept, n)
		}
	}
	b.nodes = kept
}

func (b *Buffer) isGatewayNode(nodeID string) bool {
	return nodeID == b.gatewayID || strings.HasPrefix(nodeID, "gateway-")
}

func (b *Buffer) registerNode(nodeID string) {
	if containsNode(b.nodes, nodeID) {
		return
	}
	if len(b.nodes) >= registryCapacity {
		return
	}
	b.nodes = append(b.nodes, nodeID)
	b.logger.Info("new sensor node detected",
		zap.String("node_id", nodeID),
		zap.Int("unique_nodes", len(b.nodes)),
	)
}

func containsNode(nodes []string, nodeID string) bool {
	for _, n := range nodes {
		if n == nodeID {
			return true
		}
	}
	return false
}
