package dns

import (
	"fmt"
	"slices"
	"strings"
)

// Name limits from RFC 1035 Section 2.3.4.
const (
	MaxLabelLen = 63
	MaxNameLen  = 255 // wire length, including length bytes and the terminator
)

// maxPointerHops caps how many compression pointers a single name may follow.
const maxPointerHops = 16

// EncodeName encodes a dotted domain name to DNS wire format (RFC 1035 Section 3.1).
//
// Each label is emitted as one length byte followed by its raw bytes, and the
// sequence ends with a zero-length label:
//
//	"www.example.com." → [3]www[7]example[3]com[0]
//
// A trailing dot is the terminator and is not emitted twice; "" and "."
// encode as the root name. No compression is performed.
func EncodeName(name string) ([]byte, error) {
	return AppendName(make([]byte, 0, len(name)+2), name)
}

// AppendName appends the wire form of name to dst. On error dst is returned unchanged.
func AppendName(dst []byte, name string) ([]byte, error) {
	start := len(dst)
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return append(dst, 0), nil
	}

	labelStart := 0
	for i := 0; i <= len(name); i++ {
		if i < len(name) && name[i] != '.' {
			continue
		}
		label := name[labelStart:i]
		if label == "" {
			return dst[:start], fmt.Errorf("%w: %q", ErrEmptyLabel, name)
		}
		if len(label) > MaxLabelLen {
			return dst[:start], fmt.Errorf("%w: %d bytes in %q", ErrLabelTooLong, len(label), label)
		}
		dst = append(dst, byte(len(label)))
		dst = append(dst, label...)
		labelStart = i + 1
	}
	dst = append(dst, 0)

	if n := len(dst) - start; n > MaxNameLen {
		return dst[:start], fmt.Errorf("%w: %d bytes", ErrNameTooLong, n)
	}
	return dst, nil
}

// DecodeName decodes the possibly-compressed name that starts at msg[off].
//
// It returns the dotted text form with a trailing dot ("." for the root) and the
// number of bytes the name occupies at off: the full label chain for an
// uncompressed name, or up to and including the first compression pointer.
//
// A length byte above 63 starts a compression pointer (RFC 1035 Section 4.1.4):
// its low six bits and the following byte form an absolute offset into msg.
//
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//	| 1  1|                OFFSET                   |
//	+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+--+
//
// Chains of pointers are followed; revisiting an offset or exceeding
// maxPointerHops is ErrPointerLoop. No byte at or beyond bound is read.
func DecodeName(msg []byte, off, bound int) (string, int, error) {
	if bound > len(msg) {
		bound = len(msg)
	}

	var b strings.Builder
	pos := off
	consumed := -1
	var visited []int

	for {
		if pos < 0 || pos >= bound {
			return "", 0, fmt.Errorf("%w: offset %d, bound %d", ErrTruncated, pos, bound)
		}
		l := int(msg[pos])

		switch {
		case l == 0:
			pos++
			if consumed < 0 {
				consumed = pos - off
			}
			if b.Len() == 0 {
				return ".", consumed, nil
			}
			return b.String(), consumed, nil

		case l <= MaxLabelLen:
			end := pos + 1 + l
			if end > bound {
				return "", 0, fmt.Errorf("%w: label of %d bytes at offset %d", ErrTruncated, l, pos)
			}
			b.Write(msg[pos+1 : end])
			b.WriteByte('.')
			pos = end

		default:
			if pos+1 >= bound {
				return "", 0, fmt.Errorf("%w: pointer at offset %d", ErrTruncated, pos)
			}
			target := (l&0x3F)<<8 | int(msg[pos+1])
			if consumed < 0 {
				consumed = pos + 2 - off
			}
			if target >= bound {
				return "", 0, fmt.Errorf("%w: target %d, bound %d", ErrBadPointer, target, bound)
			}
			if len(visited) >= maxPointerHops || slices.Contains(visited, target) {
				return "", 0, fmt.Errorf("%w: at offset %d", ErrPointerLoop, target)
			}
			visited = append(visited, target)
			pos = target
		}
	}
}

// NormalizeName lowercases name and makes it fully qualified.
// DNS names compare case-insensitively (RFC 4343).
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	if !strings.HasSuffix(name, ".") {
		name += "."
	}
	return name
}
