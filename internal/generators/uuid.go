package generators

import (
	"math/rand"

	"github.com/google/uuid"
)

// UUID4 builds a version 4 UUID from rng so identifiers follow the run seed.
func UUID4(rng *rand.Rand) string {
	var b [16]byte
	rng.Read(b[:])
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return uuid.UUID(b).String()
}
