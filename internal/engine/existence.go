package engine

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Verdict is what the harness knows about an identifier without asking the
// backend.
type Verdict int

const (
	// VerdictUnknown is a plausible id never seen in this run.
	VerdictUnknown Verdict = iota
	// VerdictMalformed is empty, the missing sentinel or over-length.
	VerdictMalformed
	// VerdictSynthetic was issued for a fallback record.
	VerdictSynthetic
	// VerdictCreated was issued by a create call.
	VerdictCreated
	// VerdictDeleted was removed by a delete call.
	VerdictDeleted
)

func (v Verdict) String() string {
	switch v {
	case VerdictMalformed:
		return "malformed"
	case VerdictSynthetic:
		return "synthetic"
	case VerdictCreated:
		return "created"
	case VerdictDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

const (
	DefaultMaxIDLength     = 36
	DefaultMissingSentinel = "missing"
)

// Classifier decides existence from the identifier alone. It is consulted in
// mock mode and whenever the backend could not answer.
type Classifier struct {
	MaxIDLength     int
	MissingSentinel string
	// UnknownFound makes get return a fallback record for plausible ids that
	// were never issued in this run.
	UnknownFound bool
}

func DefaultClassifier() Classifier {
	return Classifier{MaxIDLength: DefaultMaxIDLength, MissingSentinel: DefaultMissingSentinel}
}

func (c Classifier) Classify(id string, ledger *Ledger) Verdict {
	id = strings.TrimSpace(id)
	if id == "" || (c.MissingSentinel != "" && id == c.MissingSentinel) {
		return VerdictMalformed
	}
	if c.MaxIDLength > 0 && len(id) > c.MaxIDLength {
		return VerdictMalformed
	}
	if ledger != nil {
		if v, ok := ledger.Verdict(id); ok {
			return v
		}
	}
	return VerdictUnknown
}

// Exists reports whether update and delete should proceed.
func (c Classifier) Exists(v Verdict) bool {
	return v == VerdictCreated || v == VerdictUnknown
}

// Found reports whether get should return a record.
func (c Classifier) Found(v Verdict) bool {
	switch v {
	case VerdictCreated:
		return true
	case VerdictUnknown:
		return c.UnknownFound
	default:
		return false
	}
}

// DefaultSyntheticTTL is how long a fallback record's id stays recognisable.
const DefaultSyntheticTTL = 30 * time.Minute

// Ledger records every identifier issued during a run and what it was issued
// for. Synthetic ids expire after a TTL so a long-running server answering
// fallback pages stays bounded; created and deleted ids are kept for the run.
// It is safe for concurrent use.
type Ledger struct {
	mu        sync.RWMutex
	ids       map[string]Verdict
	synthetic *cache.Cache
	gen       func() string
}

type LedgerOption func(*Ledger)

// WithSyntheticTTL overrides DefaultSyntheticTTL. Non-positive values keep
// the default.
func WithSyntheticTTL(ttl time.Duration) LedgerOption {
	return func(l *Ledger) {
		if ttl > 0 {
			l.synthetic = cache.New(ttl, 2*ttl)
		}
	}
}

func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		ids:       make(map[string]Verdict),
		synthetic: cache.New(DefaultSyntheticTTL, 2*DefaultSyntheticTTL),
		gen:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Issue returns a fresh identifier that was never issued or marked before.
func (l *Ledger) Issue(v Verdict) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	for {
		id := l.gen()
		if l.taken(id) {
			continue
		}
		l.set(id, v)
		return id
	}
}

func (l *Ledger) Mark(id string, v Verdict) {
	l.mu.Lock()
	l.set(id, v)
	l.mu.Unlock()
}

func (l *Ledger) Verdict(id string) (Verdict, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if v, ok := l.ids[id]; ok {
		return v, true
	}
	if _, ok := l.synthetic.Get(id); ok {
		return VerdictSynthetic, true
	}
	return VerdictUnknown, false
}

// Len counts tracked ids, including synthetic ids not yet evicted.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ids) + l.synthetic.ItemCount()
}

func (l *Ledger) taken(id string) bool {
	if _, ok := l.ids[id]; ok {
		return true
	}
	_, ok := l.synthetic.Get(id)
	return ok
}

// set must be called with mu held.
func (l *Ledger) set(id string, v Verdict) {
	if v == VerdictSynthetic {
		l.synthetic.SetDefault(id, struct{}{})
		return
	}
	l.synthetic.Delete(id)
	l.ids[id] = v
}
