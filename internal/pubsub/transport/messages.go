// Package transport carries pub-sub traffic between cluster nodes: forwarded
// publications and DData replication writes/reads. Wire formats are
// delegated to google.golang.org/grpc exactly as spec.md §6 requires ("only
// the payload types must have stable serialization"); the payload types
// below are plain, JSON-serializable Go structs rather than protoc-generated
// messages — see DESIGN.md for why.
package transport

// Kind discriminates what a Push carries.
type Kind string

const (
	KindForward         Kind = "forward"
	KindCompressedWrite Kind = "compressed_write"
	KindLiteralWrite    Kind = "literal_write"
)

// PushRequest is the single envelope used for both message forwarding
// (spec.md §4.6) and DData replication writes (spec.md §4.4/§4.5). Gen is
// the writing node's monotonic generation counter for the replication
// kinds; it is ignored for KindForward.
type PushRequest struct {
	Kind      Kind
	From      string
	Topics    []string // KindForward
	Payload   []byte   // KindForward: the caller's serialized message
	ReplyTo   string   // KindForward: original sender, preserved for replies
	Gen       uint64   // replication kinds
	Int32Set  []int32  // KindCompressedWrite
	StringSet []string // KindLiteralWrite
}

// PushResponse acknowledges a PushRequest.
type PushResponse struct {
	FalsePositive bool // set by a Forward handler when no local subscriber matched
}

// ReadCompressedRequest requests a peer's full Compressed DData view.
type ReadCompressedRequest struct{}

// ReadCompressedResponse is a peer's Compressed DData snapshot.
type ReadCompressedResponse struct {
	Entries map[string][]int32
	Gens    map[string]uint64
}

// ReadLiteralRequest requests a peer's full Literal DData view.
type ReadLiteralRequest struct{}

// ReadLiteralResponse is a peer's Literal DData snapshot.
type ReadLiteralResponse struct {
	Entries map[string][]string
	Gens    map[string]uint64
}
