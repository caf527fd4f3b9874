package message

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// idSource serializes ulid generation: ulid.MustNew is not safe for
// concurrent use with a shared monotonic entropy source, and the
// runtime mints ids from many goroutines at once (one per inbound
// request).
var idSource = struct {
	sync.Mutex
	entropy *ulid.MonotonicReader
}{}

func init() {
	seed := rand.New(rand.NewSource(time.Now().UnixNano()))
	idSource.entropy = ulid.Monotonic(seed, 0)
}

// NewID mints a unique opaque token for Message.ID — a lexicographically
// sortable ULID so request ids remain useful for log correlation and
// rough time ordering without a central sequence.
func NewID() string {
	idSource.Lock()
	defer idSource.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), idSource.entropy)
	return id.String()
}
