// ABOUTME: Length-framed composite row keys built from ordered segments
// ABOUTME: Builder packs byte and string segments, Splitter reads them back in order

package mdskey

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// lenSize is the width of the big-endian length that precedes every segment
const lenSize = 4

// ErrMalformedKey is returned when a key ends in the middle of a segment
var ErrMalformedKey = errors.New("malformed key")

// Key is an immutable encoded composite key
type Key struct {
	b []byte
}

// Bytes returns a copy of the encoded key
func (k Key) Bytes() []byte {
	out := make([]byte, len(k.b))
	copy(out, k.b)
	return out
}

// Split returns a cursor positioned at the first segment
func (k Key) Split() *Splitter {
	return NewSplitter(k.b)
}

// Builder accumulates segments in insertion order
type Builder struct {
	buf   []byte
	built bool
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{buf: make([]byte, 0, 64)}
}

// Add appends a raw byte segment
func (b *Builder) Add(seg []byte) *Builder {
	if b.built {
		panic("mdskey: Add called after Build")
	}
	var l [lenSize]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(seg)))
	b.buf = append(b.buf, l[:]...)
	b.buf = append(b.buf, seg...)
	return b
}

// AddString appends s as a UTF-8 segment framed like a byte segment
func (b *Builder) AddString(s string) *Builder {
	return b.Add([]byte(s))
}

// Build finalizes the key. The builder cannot be used afterwards.
func (b *Builder) Build() Key {
	b.built = true
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return Key{b: out}
}

// Splitter is a forward-only cursor over the segments of a key
type Splitter struct {
	data []byte
	pos  int
}

// NewSplitter creates a cursor over an encoded key
func NewSplitter(data []byte) *Splitter {
	return &Splitter{data: data}
}

// HasRemaining reports whether unread bytes are left
func (s *Splitter) HasRemaining() bool {
	return s.pos < len(s.data)
}

// next returns the bounds of the next segment and advances past it
func (s *Splitter) next() (int, int, error) {
	if len(s.data)-s.pos < lenSize {
		return 0, 0, fmt.Errorf("%w: incomplete length at pos %d", ErrMalformedKey, s.pos)
	}
	n := binary.BigEndian.Uint32(s.data[s.pos : s.pos+lenSize])
	start := s.pos + lenSize
	if uint64(n) > uint64(len(s.data)-start) {
		return 0, 0, fmt.Errorf("%w: segment of %d bytes at pos %d exceeds remaining %d",
			ErrMalformedKey, n, s.pos, len(s.data)-start)
	}
	end := start + int(n)
	s.pos = end
	return start, end, nil
}

// GetBytes returns a copy of the next segment
func (s *Splitter) GetBytes() ([]byte, error) {
	start, end, err := s.next()
	if err != nil {
		return nil, err
	}
	out := make([]byte, end-start)
	copy(out, s.data[start:end])
	return out, nil
}

// GetString decodes the next segment as a string
func (s *Splitter) GetString() (string, error) {
	start, end, err := s.next()
	if err != nil {
		return "", err
	}
	return string(s.data[start:end]), nil
}

// SkipBytes advances past the next segment
func (s *Splitter) SkipBytes() error {
	_, _, err := s.next()
	return err
}

// SkipString advances past the next segment
func (s *Splitter) SkipString() error {
	return s.SkipBytes()
}

// PrefixEnd returns the smallest key greater than every key starting with prefix.
// Returns nil when prefix is empty or all 0xFF, i.e. the scan has no upper bound.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
