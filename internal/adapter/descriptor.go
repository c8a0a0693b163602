package adapter

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coachpo/feedgate/internal/bus"
)

// StreamNameFunc derives an exchange's wire stream name for a (symbol,
// dataType) pair. Must be pure and total.
type StreamNameFunc func(symbol string, dataType bus.DataType) string

// DefaultStreamName implements spec's stream-name formation rule:
// lower(symbol) + "@" + lower(dataType).
func DefaultStreamName(symbol string, dataType bus.DataType) string {
	return strings.ToLower(strings.TrimSpace(symbol)) + "@" + strings.ToLower(string(dataType))
}

// SubscriptionDescriptor records one (symbol, dataType) pair requested of an
// Adapter. The union of active descriptors determines the Connection
// Manager's StreamSet.
type SubscriptionDescriptor struct {
	ID           string
	Symbol       string
	DataType     bus.DataType
	Stream       string
	SubscribedAt time.Time
	Active       bool
}

// descriptorTable tracks subscription descriptors and reference-counts the
// wire stream name each one maps to, so two descriptors that happen to
// share a stream name don't cause a premature removeStream.
type descriptorTable struct {
	mu       sync.Mutex
	byID     map[string]*SubscriptionDescriptor
	refCount map[string]int
}

func newDescriptorTable() *descriptorTable {
	return &descriptorTable{
		byID:     make(map[string]*SubscriptionDescriptor),
		refCount: make(map[string]int),
	}
}

// add registers a descriptor for (symbol, dataType), returning it and
// whether this is the first descriptor bound to its stream name (the
// caller should addStream in that case).
func (t *descriptorTable) add(symbol string, dataType bus.DataType, nameFn StreamNameFunc) (*SubscriptionDescriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stream := nameFn(symbol, dataType)
	d := &SubscriptionDescriptor{
		ID:           uuid.NewString(),
		Symbol:       symbol,
		DataType:     dataType,
		Stream:       stream,
		SubscribedAt: time.Now(),
		Active:       true,
	}
	t.byID[d.ID] = d
	t.refCount[stream]++
	return d, t.refCount[stream] == 1
}

// remove deactivates the descriptors named by ids, returning each removed
// descriptor and the set of stream names that dropped to zero references
// (the caller should removeStream those).
func (t *descriptorTable) remove(ids []string) (removed []*SubscriptionDescriptor, drainedStreams []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range ids {
		d, ok := t.byID[id]
		if !ok {
			continue
		}
		d.Active = false
		delete(t.byID, id)
		removed = append(removed, d)
		t.refCount[d.Stream]--
		if t.refCount[d.Stream] <= 0 {
			delete(t.refCount, d.Stream)
			drainedStreams = append(drainedStreams, d.Stream)
		}
	}
	return removed, drainedStreams
}

// clear removes every descriptor, returning them and every stream name
// that was in use.
func (t *descriptorTable) clear() (removed []*SubscriptionDescriptor, streams []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed = make([]*SubscriptionDescriptor, 0, len(t.byID))
	for _, d := range t.byID {
		d.Active = false
		removed = append(removed, d)
	}
	streams = make([]string, 0, len(t.refCount))
	for stream := range t.refCount {
		streams = append(streams, stream)
	}
	t.byID = make(map[string]*SubscriptionDescriptor)
	t.refCount = make(map[string]int)
	return removed, streams
}

func (t *descriptorTable) list() []SubscriptionDescriptor {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SubscriptionDescriptor, 0, len(t.byID))
	for _, d := range t.byID {
		out = append(out, *d)
	}
	return out
}
