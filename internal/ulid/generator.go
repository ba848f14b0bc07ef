package ulid

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     io.Reader
	entropyOnce sync.Once
	generator   = DefaultGenerator
)

// DefaultEntropy returns a shared reader producing ULID entropy.
func DefaultEntropy() io.Reader {
	entropyOnce.Do(func() {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		entropy = &ulid.LockedMonotonicReader{
			MonotonicReader: ulid.Monotonic(rng, 0),
		}
	})
	return entropy
}

// ValidID reports whether id parses as a ULID.
func ValidID(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// GenerateID returns a new ULID. Image insertions use these as stable
// identifiers that survive tree rewrites.
func GenerateID() string {
	return generator()
}

func DefaultGenerator() string {
	ts := ulid.Timestamp(time.Now())
	return ulid.MustNew(ts, DefaultEntropy()).String()
}

func ResetGenerator() {
	generator = DefaultGenerator
}

// MockGenerator pins GenerateID to a fixed value for deterministic tests.
func MockGenerator(mockValue string) {
	generator = func() string {
		return mockValue
	}
}
