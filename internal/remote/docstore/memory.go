package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/studyhub/studyhub/internal/remote"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryEngine is an in-memory Engine used for tests and for running without
// MongoDB. Server timestamps come from its own clock and are strictly
// increasing at millisecond resolution, like insert order.
type MemoryEngine struct {
	mu          sync.RWMutex
	collections map[string][]*memRecord
	seq         int
	last        time.Time
	now         func() time.Time
}

type memRecord struct {
	id     string
	seq    int
	fields remote.Fields
}

func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{collections: make(map[string][]*memRecord), now: time.Now}
}

// SetClock replaces the engine clock.
func (m *MemoryEngine) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// serverNow must be called with m.mu held.
func (m *MemoryEngine) serverNow() time.Time {
	t := m.now().UTC().Truncate(time.Millisecond)
	if !t.After(m.last) {
		t = m.last.Add(time.Millisecond)
	}
	m.last = t
	return t
}

func (m *MemoryEngine) resolve(v any) any {
	switch vv := v.(type) {
	case remote.Fields:
		out := make(remote.Fields, len(vv))
		for k, x := range vv {
			out[k] = m.resolve(x)
		}
		return out
	case map[string]any:
		return m.resolve(remote.Fields(vv))
	case []any:
		out := make([]any, len(vv))
		for i, x := range vv {
			out[i] = m.resolve(x)
		}
		return out
	default:
		if remote.IsServerTimestamp(v) {
			return m.serverNow()
		}
		return v
	}
}

func (m *MemoryEngine) Insert(_ context.Context, collection string, fields remote.Fields) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	rec := &memRecord{
		id:     primitive.NewObjectID().Hex(),
		seq:    m.seq,
		fields: m.resolve(fields).(remote.Fields),
	}
	m.collections[collection] = append(m.collections[collection], rec)
	return rec.id, nil
}

func (m *MemoryEngine) AppendToField(_ context.Context, collection, id, field string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.collections[collection] {
		if r.id != id {
			continue
		}
		var arr []any
		switch cur := r.fields[field].(type) {
		case nil:
		case []any:
			arr = cur
		default:
			return fmt.Errorf("field %q is not an array", field)
		}
		// copy so snapshots already handed out keep their length
		next := make([]any, len(arr), len(arr)+1)
		copy(next, arr)
		r.fields[field] = append(next, m.resolve(value))
		return nil
	}
	return remote.ErrNotFound
}

func (m *MemoryEngine) QueryAll(_ context.Context, collection, orderBy string, dir remote.Direction) ([]remote.Record, error) {
	m.mu.RLock()
	recs := make([]*memRecord, len(m.collections[collection]))
	copy(recs, m.collections[collection])
	out := make([]remote.Record, 0, len(recs))
	sort.SliceStable(recs, func(i, j int) bool {
		c := compare(recs[i].fields[orderBy], recs[j].fields[orderBy])
		if c == 0 {
			c = recs[i].seq - recs[j].seq
		}
		if dir == remote.Descending {
			return c > 0
		}
		return c < 0
	})
	for _, r := range recs {
		out = append(out, remote.Record{ID: r.id, Fields: cloneFields(r.fields)})
	}
	m.mu.RUnlock()
	return out, nil
}

func cloneFields(f remote.Fields) remote.Fields {
	out := make(remote.Fields, len(f))
	for k, v := range f {
		if arr, ok := v.([]any); ok {
			cp := make([]any, len(arr))
			copy(cp, arr)
			v = cp
		}
		out[k] = v
	}
	return out
}

func compare(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		bv, _ := b.(time.Time)
		return av.Compare(bv)
	case string:
		bv, _ := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case int:
		bv, _ := b.(int)
		return av - bv
	case nil:
		if b == nil {
			return 0
		}
		return -1
	}
	return 0
}
