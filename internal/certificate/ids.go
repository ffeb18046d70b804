package certificate

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
)

// IDGenerator produces the default certificate identifier of a new draft.
// It is invoked exactly once, when the draft is created.
type IDGenerator interface {
	NewCertificateID() string
}

// RandomIDs generates CERT-<5 digits> identifiers in the range 10000..99999.
// Uniqueness is the ledger's concern, not the generator's.
type RandomIDs struct{}

// NewCertificateID implements IDGenerator.
func (RandomIDs) NewCertificateID() string {
	return fmt.Sprintf("%s%05d", IDPrefix, 10000+rand.IntN(90000))
}

// SequentialIDs hands out CERT-<n> identifiers in order starting at Start.
type SequentialIDs struct {
	Start int64
	next  atomic.Int64
}

// NewCertificateID implements IDGenerator.
func (s *SequentialIDs) NewCertificateID() string {
	n := s.Start + s.next.Add(1) - 1
	return fmt.Sprintf("%s%05d", IDPrefix, n)
}

var (
	_ IDGenerator = RandomIDs{}
	_ IDGenerator = (*SequentialIDs)(nil)
)
