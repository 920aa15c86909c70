package dns

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// AnswerSet is the result of a successful ParseResponse.
type AnswerSet struct {
	Header Header
	// QName is the name of the first question, or "" when the reply echoed none.
	QName string
	// Addr is the address carried by the first A record of the answer section.
	Addr netip.Addr
	TTL  uint32
	// EDNSPayloadSize is the UDP payload size advertised by an OPT record, or 0.
	EDNSPayloadSize uint16
}

// rrHeader holds the fixed fields that follow a resource record's name.
type rrHeader struct {
	Type     RecordType
	Class    uint16
	TTL      uint32
	RDLength int
}

// ParseResponse validates a reply to the query sent with transaction id and
// returns the first A record it carries.
//
// Validation is strict: the header must mark a successful response with the
// expected ID, every section must decode within the message, additional
// records may only be EDNS OPT records, and the bytes walked must add up to
// exactly len(msg). Either the whole message checks out or an error wrapping
// one of the package sentinels is returned.
func ParseResponse(msg []byte, id uint16) (AnswerSet, error) {
	h, err := ParseHeader(msg)
	if err != nil {
		return AnswerSet{}, err
	}
	if !h.IsResponse() {
		return AnswerSet{}, fmt.Errorf("%w: QR flag clear (id %d)", ErrNotAMatchingReply, h.ID)
	}
	if h.ID != id {
		return AnswerSet{}, fmt.Errorf("%w: id %d, want %d", ErrNotAMatchingReply, h.ID, id)
	}
	if rc := h.RCode(); rc != RCodeNoError {
		return AnswerSet{}, fmt.Errorf("%w: rcode %d", ErrServerError, rc)
	}

	set := AnswerSet{Header: h}
	off := HeaderSize

	for i := range int(h.QDCount) {
		name, n, err := DecodeName(msg, off, len(msg))
		if err != nil {
			return AnswerSet{}, fmt.Errorf("question %d: %w", i, err)
		}
		off += n
		if off+questionFooterSize > len(msg) {
			return AnswerSet{}, fmt.Errorf("%w: question %d", ErrShortSection, i)
		}
		off += questionFooterSize
		if i == 0 {
			set.QName = name
		}
	}

	found := false
	for i := range int(h.ANCount) {
		rr, next, err := parseRecordHeader(msg, off)
		if err != nil {
			return AnswerSet{}, fmt.Errorf("answer %d: %w", i, err)
		}
		if !found && rr.Type == TypeA && rr.RDLength == ipv4Size {
			set.Addr = netip.AddrFrom4([4]byte(msg[next : next+ipv4Size]))
			set.TTL = rr.TTL
			found = true
		}
		off = next + rr.RDLength
	}

	for i := range int(h.NSCount) {
		rr, next, err := parseRecordHeader(msg, off)
		if err != nil {
			return AnswerSet{}, fmt.Errorf("authority %d: %w", i, err)
		}
		off = next + rr.RDLength
	}

	for i := range int(h.ARCount) {
		if off >= len(msg) || msg[off] != 0 {
			return AnswerSet{}, fmt.Errorf("%w: additional %d does not have the root name", ErrUnexpectedAdditional, i)
		}
		rr, next, err := parseRecordHeader(msg, off)
		if err != nil {
			return AnswerSet{}, fmt.Errorf("additional %d: %w", i, err)
		}
		if rr.Type != TypeOPT {
			return AnswerSet{}, fmt.Errorf("%w: additional %d has type %d", ErrUnexpectedAdditional, i, rr.Type)
		}
		set.EDNSPayloadSize = rr.Class
		off = next + rr.RDLength
	}

	if off != len(msg) {
		return AnswerSet{}, fmt.Errorf("%w: processed %d bytes, received %d", ErrTrailingOrMissingBytes, off, len(msg))
	}
	if !found {
		return AnswerSet{}, ErrNoAnswerRecord
	}
	return set, nil
}

// parseRecordHeader decodes the owner name and fixed fields of the record at off.
// It returns the offset of the record's RDATA, which is known to fit in msg.
func parseRecordHeader(msg []byte, off int) (rrHeader, int, error) {
	_, n, err := DecodeName(msg, off, len(msg))
	if err != nil {
		return rrHeader{}, 0, err
	}
	off += n
	if off+recordHeaderSize > len(msg) {
		return rrHeader{}, 0, fmt.Errorf("%w: record header at offset %d", ErrShortSection, off)
	}
	rr := rrHeader{
		Type:     RecordType(binary.BigEndian.Uint16(msg[off : off+2])),
		Class:    binary.BigEndian.Uint16(msg[off+2 : off+4]),
		TTL:      binary.BigEndian.Uint32(msg[off+4 : off+8]),
		RDLength: int(binary.BigEndian.Uint16(msg[off+8 : off+10])),
	}
	off += recordHeaderSize
	if off+rr.RDLength > len(msg) {
		return rrHeader{}, 0, fmt.Errorf("%w: %d bytes at offset %d", ErrRDataOverflow, rr.RDLength, off)
	}
	return rr, off, nil
}
