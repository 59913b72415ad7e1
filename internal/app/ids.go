package app

import (
	"crypto/rand"
	"sync"

	"github.com/oklog/ulid/v2"
)

// NewULIDGenerator returns a generator of monotonic ULIDs stamped with clock.
// IDs generated within one millisecond still sort in creation order.
func NewULIDGenerator(clock Clock) IDGenerator {
	entropy := ulid.Monotonic(rand.Reader, 0)
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return ulid.MustNew(ulid.Timestamp(clock()), entropy).String()
	}
}
