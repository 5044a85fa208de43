// Package diversity implements the committee's sample buffer: a
// deduplicated, FIFO queue of unmatched key-texts that triggers a committee
// firing once it grows past a configured threshold. Grounded on
// core/buffer.py (original_source); the sample fingerprint is blake2b-512
// truncated to 160 bits instead of sha1.
package diversity

import (
	"golang.org/x/crypto/blake2b"
)

const fingerprintSize = 20 // 160 bits

type fingerprint [fingerprintSize]byte

func hashSample(s string) fingerprint {
	full := blake2b.Sum512([]byte(s))
	var fp fingerprint
	copy(fp[:], full[:fingerprintSize])
	return fp
}

// Buffer accumulates unmatched key-texts across micro-batches until a
// committee firing is triggered. A Buffer is single-writer: it is only ever
// touched by the pipeline driver goroutine, never from match workers.
type Buffer struct {
	sizeThreshold    int
	maxPerMicroBatch int
	samples          []string
	seen             map[fingerprint]bool
	locked           bool
}

// New returns an empty Buffer with the given trigger threshold and
// per-micro-batch admission cap.
func New(sizeThreshold, maxPerMicroBatch int) *Buffer {
	return &Buffer{
		sizeThreshold:    sizeThreshold,
		maxPerMicroBatch: maxPerMicroBatch,
		seen:             make(map[fingerprint]bool),
	}
}

// PickForBuffer iterates misses in order, admitting each whose fingerprint
// has not already been seen (either already buffered or picked earlier in
// this same call), and stops once maxPerMicroBatch admissions are reached.
// It does not mutate the buffer; call Add with the result to commit.
func (b *Buffer) PickForBuffer(misses []string) []string {
	picked := make([]string, 0, b.maxPerMicroBatch)
	pickedHashes := make(map[fingerprint]bool)

	for _, m := range misses {
		if len(picked) >= b.maxPerMicroBatch {
			break
		}
		h := hashSample(m)
		if b.seen[h] || pickedHashes[h] {
			continue
		}
		pickedHashes[h] = true
		picked = append(picked, m)
	}
	return picked
}

// Add extends the buffer with picked, which must already be deduplicated by
// PickForBuffer. Order is preserved (FIFO).
func (b *Buffer) Add(picked []string) {
	for _, s := range picked {
		h := hashSample(s)
		if !b.seen[h] {
			b.seen[h] = true
			b.samples = append(b.samples, s)
		}
	}
}

// ReachedThreshold reports whether the buffer is unlocked and has grown to
// at least sizeThreshold samples.
func (b *Buffer) ReachedThreshold() bool {
	return !b.locked && len(b.samples) >= b.sizeThreshold
}

// SnapshotAndLock locks the buffer (further ReachedThreshold calls return
// false until ClearLockedBatch) and returns a shallow copy of the current
// samples, guaranteeing at most one outstanding locked batch at a time.
func (b *Buffer) SnapshotAndLock() []string {
	b.locked = true
	out := make([]string, len(b.samples))
	copy(out, b.samples)
	return out
}

// ClearLockedBatch clears all buffered state and unlocks the buffer,
// called after a committee firing's output has been written (or found
// empty).
func (b *Buffer) ClearLockedBatch() {
	b.samples = nil
	b.seen = make(map[fingerprint]bool)
	b.locked = false
}

// Len reports the number of samples currently buffered.
func (b *Buffer) Len() int { return len(b.samples) }

// Locked reports whether the buffer currently holds an outstanding
// snapshot.
func (b *Buffer) Locked() bool { return b.locked }
