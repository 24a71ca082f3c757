package ddata

import "time"

// LiteralDData is the replicated NodeID -> Set<string> map used for
// declared acknowledgement labels (exact match, no hash collisions).
type LiteralDData = Map[string]

// NewLiteral constructs a LiteralDData for self.
func NewLiteral(self NodeID, repl Replicator[string], writeTimeout time.Duration) *LiteralDData {
	return New[string](self, repl, writeTimeout)
}
