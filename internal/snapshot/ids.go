package snapshot

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDGenerator hands out lexically sortable ids of the form
// "<ulid>_<reason>". Ids are strictly increasing within a process, also
// within the same millisecond.
type IDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{entropy: ulid.Monotonic(rand.Reader, 0), now: now}
}

func (g *IDGenerator) New(reason string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
	return strings.ToLower(id.String()) + "_" + sanitizeReason(reason)
}

func sanitizeReason(reason string) string {
	if reason == "" {
		return ReasonUnknown
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, reason)
}
