package ddata

import "time"

// CompressedDData is the replicated NodeID -> Set<int32> map advertising,
// in hashed form, what topics each node is interested in.
type CompressedDData = Map[int32]

// NewCompressed constructs a CompressedDData for self.
func NewCompressed(self NodeID, repl Replicator[int32], writeTimeout time.Duration) *CompressedDData {
	return New[int32](self, repl, writeTimeout)
}
