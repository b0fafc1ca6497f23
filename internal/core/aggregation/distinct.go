package aggregation

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/golang/snappy"
	"github.com/spaolacci/murmur3"
)

const sketchFormatV1 byte = 1

// DistinctSketch is an exact distinct-count state: the sorted set of 64-bit
// murmur3 hashes of the message IDs seen. Two events with the same message ID
// hash to the same entry, so redelivery never inflates the count.
//
// A DistinctSketch is immutable; Merge returns a new value.
type DistinctSketch struct {
	hashes []uint64 // sorted ascending, no duplicates
}

// Len returns the number of distinct message IDs in the sketch.
func (s DistinctSketch) Len() int {
	return len(s.hashes)
}

// Contains reports whether messageID was folded into the sketch.
func (s DistinctSketch) Contains(messageID string) bool {
	_, found := slices.BinarySearch(s.hashes, hashMessageID(messageID))
	return found
}

func hashMessageID(id string) uint64 {
	return murmur3.Sum64([]byte(id))
}

// DistinctCount is the Aggregate for distinct message IDs.
type DistinctCount struct{}

func (DistinctCount) Initial(messageIDs []string) DistinctSketch {
	if len(messageIDs) == 0 {
		return DistinctSketch{}
	}
	hashes := make([]uint64, 0, len(messageIDs))
	for _, id := range messageIDs {
		hashes = append(hashes, hashMessageID(id))
	}
	slices.Sort(hashes)
	return DistinctSketch{hashes: slices.Compact(hashes)}
}

// Merge is a sorted set union.
func (DistinctCount) Merge(a, b DistinctSketch) DistinctSketch {
	if len(a.hashes) == 0 {
		return b
	}
	if len(b.hashes) == 0 {
		return a
	}

	out := make([]uint64, 0, len(a.hashes)+len(b.hashes))
	i, j := 0, 0
	for i < len(a.hashes) && j < len(b.hashes) {
		switch x, y := a.hashes[i], b.hashes[j]; {
		case x < y:
			out = append(out, x)
			i++
		case x > y:
			out = append(out, y)
			j++
		default:
			out = append(out, x)
			i++
			j++
		}
	}
	out = append(out, a.hashes[i:]...)
	out = append(out, b.hashes[j:]...)
	return DistinctSketch{hashes: out}
}

func (DistinctCount) Extract(s DistinctSketch) uint64 {
	return uint64(len(s.hashes))
}

// MarshalBinary encodes the sketch for storage:
//   - 1 byte: format version
//   - uvarint: number of hashes
//   - uvarint per hash: delta from the previous hash
//
// The whole frame is snappy-compressed.
func (s DistinctSketch) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 1+binary.MaxVarintLen64*(len(s.hashes)+1))
	buf = append(buf, sketchFormatV1)
	buf = binary.AppendUvarint(buf, uint64(len(s.hashes)))

	var prev uint64
	for _, h := range s.hashes {
		buf = binary.AppendUvarint(buf, h-prev)
		prev = h
	}
	return snappy.Encode(nil, buf), nil
}

// UnmarshalBinary decodes a sketch written by MarshalBinary.
func (s *DistinctSketch) UnmarshalBinary(data []byte) error {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return fmt.Errorf("sketch: decompress: %w", err)
	}
	if len(raw) == 0 {
		return errors.New("sketch: empty payload")
	}
	if raw[0] != sketchFormatV1 {
		return fmt.Errorf("sketch: unsupported format version %d", raw[0])
	}
	raw = raw[1:]

	n, read := binary.Uvarint(raw)
	if read <= 0 {
		return errors.New("sketch: malformed length")
	}
	raw = raw[read:]

	// Each entry takes at least one byte; reject lengths the payload cannot hold.
	if n > uint64(len(raw)) {
		return fmt.Errorf("sketch: length %d exceeds payload of %d bytes", n, len(raw))
	}

	hashes := make([]uint64, 0, n)
	var prev uint64
	for i := uint64(0); i < n; i++ {
		delta, read := binary.Uvarint(raw)
		if read <= 0 {
			return fmt.Errorf("sketch: malformed entry %d", i)
		}
		raw = raw[read:]
		if i > 0 && delta == 0 {
			return fmt.Errorf("sketch: duplicate hash at entry %d", i)
		}
		prev += delta
		hashes = append(hashes, prev)
	}
	if len(raw) != 0 {
		return fmt.Errorf("sketch: %d trailing bytes", len(raw))
	}

	s.hashes = hashes
	return nil
}
