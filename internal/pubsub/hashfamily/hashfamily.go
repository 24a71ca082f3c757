// Package hashfamily derives the compressed topic fingerprints advertised
// cluster-wide by the Compressed DData layer.
package hashfamily

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Family is a deterministic set of k independent hash functions sharing a
// cluster-wide seed. Every node in a cluster must construct its Family with
// the same seed and k for the pub-sub to function: a topic hashes to the
// same fingerprints everywhere.
type Family struct {
	seed string
	k    int
}

// New returns a Family of k hash functions salted by seed. k must be >= 1.
func New(seed string, k int) Family {
	if k < 1 {
		k = 1
	}
	return Family{seed: seed, k: k}
}

// K reports the configured family size.
func (f Family) K() int {
	return f.k
}

// Hashes returns the k 32-bit fingerprints for topic. Each hash mixes a
// per-index salt derived from i and the cluster seed into the topic bytes,
// so the k outputs are independent even though they share one seed.
func (f Family) Hashes(topic string) []int32 {
	out := make([]int32, f.k)
	for i := 0; i < f.k; i++ {
		out[i] = f.hashAt(i, topic)
	}
	return out
}

func (f Family) hashAt(i int, topic string) int32 {
	d := xxhash.New()
	var salt [8]byte
	binary.LittleEndian.PutUint64(salt[:], uint64(i))
	d.Write(salt[:])
	d.WriteString(f.seed)
	d.WriteString("\x00")
	d.WriteString(topic)
	sum := d.Sum64()
	// Fold the 64-bit digest down to 32 bits instead of truncating, so both
	// halves of the digest contribute to the fingerprint.
	return int32(uint32(sum) ^ uint32(sum>>32))
}

// HashesAll returns the union of fingerprints for a set of topics.
func (f Family) HashesAll(topics []string) []int32 {
	seen := make(map[int32]struct{}, len(topics)*f.k)
	out := make([]int32, 0, len(topics)*f.k)
	for _, t := range topics {
		for _, h := range f.Hashes(t) {
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	return out
}
