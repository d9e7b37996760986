package merkletree

import (
	"encoding/binary"
	"fmt"

	"github.com/hhanh00/shielded-vote/config"
	"github.com/hhanh00/shielded-vote/field"
)

// Encode serializes f as a fixed-size record: an 8-byte little-endian size
// followed by, for each of the config.Depth layers, a presence byte and 32
// bytes (the canonical encoding if present, zeros if not) — the on-disk shape of election.Election's
// CmxFrontier field (spec §6's cmx_frontiers table: "frontier" column).
func (f *Frontier) Encode() []byte {
	out := make([]byte, 0, 8+config.Depth*(1+config.HashSize))
	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], f.Size)
	out = append(out, sizeBuf[:]...)
	for i := 0; i < config.Depth; i++ {
		if f.Lefts[i] == nil {
			out = append(out, 0)
			out = append(out, make([]byte, config.HashSize)...)
			continue
		}
		out = append(out, 1)
		b := f.Lefts[i].Bytes()
		out = append(out, b[:]...)
	}
	return out
}

// DecodeFrontier is Encode's inverse.
func DecodeFrontier(b []byte) (*Frontier, error) {
	const recordSize = 8 + config.Depth*(1+config.HashSize)
	if len(b) != recordSize {
		return nil, fmt.Errorf("merkletree: decode frontier: expected %d bytes, got %d", recordSize, len(b))
	}
	f := &Frontier{Size: binary.LittleEndian.Uint64(b[:8])}
	offset := 8
	for i := 0; i < config.Depth; i++ {
		present := b[offset]
		offset++
		if present == 0 {
			offset += config.HashSize
			continue
		}
		e, err := field.FromLEBytes(b[offset : offset+config.HashSize])
		if err != nil {
			return nil, fmt.Errorf("merkletree: decode frontier layer %d: %w", i, err)
		}
		f.Lefts[i] = &e
		offset += config.HashSize
	}
	return f, nil
}
