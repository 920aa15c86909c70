package dns

import (
	"encoding/binary"
	"net"
	"net/netip"
	"testing"

	"github.com/bassosimone/runtimex"
	mdns "github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pdosReply is a hand-built reply: one question for pdos.csail.mit.edu/A/IN
// and one compressed A answer pointing back at the question name.
func pdosReply(id uint16) []byte {
	msg := Header{ID: id, Flags: QRFlag | RDFlag | RAFlag, QDCount: 1, ANCount: 1}.AppendTo(nil)
	msg = append(msg, 4, 'p', 'd', 'o', 's', 5, 'c', 's', 'a', 'i', 'l', 3, 'm', 'i', 't', 3, 'e', 'd', 'u', 0)
	msg = append(msg, 0, 1, 0, 1) // A, IN
	msg = append(msg,
		0xC0, 0x0C, // pointer to the question name
		0, 1, // type A
		0, 1, // class IN
		0, 0, 0x0E, 0x10, // ttl 3600
		0, 4, // rdlength
		128, 52, 129, 126,
	)
	return msg
}

// withOPT appends an EDNS OPT record and bumps ARCOUNT.
func withOPT(msg []byte, payload uint16, rdata []byte) []byte {
	out := append([]byte(nil), msg...)
	ar := binary.BigEndian.Uint16(out[10:12])
	binary.BigEndian.PutUint16(out[10:12], ar+1)
	out = append(out, 0) // root name
	out = binary.BigEndian.AppendUint16(out, uint16(TypeOPT))
	out = binary.BigEndian.AppendUint16(out, payload)
	out = binary.BigEndian.AppendUint32(out, 0)
	out = binary.BigEndian.AppendUint16(out, uint16(len(rdata)))
	return append(out, rdata...)
}

func TestParseResponse_HandBuilt(t *testing.T) {
	set, err := ParseResponse(pdosReply(6828), 6828)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("128.52.129.126"), set.Addr)
	assert.Equal(t, "pdos.csail.mit.edu.", set.QName)
	assert.Equal(t, uint32(3600), set.TTL)
	assert.Equal(t, uint16(0), set.EDNSPayloadSize)
	assert.Equal(t, uint16(6828), set.Header.ID)
}

func TestParseResponse_WithEDNS(t *testing.T) {
	msg := withOPT(pdosReply(1), 1232, []byte{0, 10, 0, 2, 0xAB, 0xCD})
	set, err := ParseResponse(msg, 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(1232), set.EDNSPayloadSize)
	assert.Equal(t, netip.MustParseAddr("128.52.129.126"), set.Addr)
}

func TestParseResponse_FirstARecordWins(t *testing.T) {
	msg := pdosReply(9)
	binary.BigEndian.PutUint16(msg[6:8], 2)
	msg = append(msg, 0xC0, 0x0C, 0, 1, 0, 1, 0, 0, 0, 60, 0, 4, 10, 0, 0, 1)

	set, err := ParseResponse(msg, 9)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("128.52.129.126"), set.Addr)
}

func TestParseResponse_SkipsNonARecords(t *testing.T) {
	// A CNAME with an uncompressed owner name followed by the A record.
	msg := Header{ID: 3, Flags: QRFlag, QDCount: 1, ANCount: 2}.AppendTo(nil)
	msg = append(msg, 1, 'a', 0, 0, 1, 0, 1)
	msg = append(msg, 1, 'a', 0, 0, 5, 0, 1, 0, 0, 0, 1, 0, 4, 1, 'b', 0xC0, 0x0C)
	msg = append(msg, 1, 'b', 0xC0, 0x0C, 0, 1, 0, 1, 0, 0, 0, 1, 0, 4, 192, 0, 2, 1)

	set, err := ParseResponse(msg, 3)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.0.2.1"), set.Addr)
}

func TestParseResponse_AuthorityRecordsAreWalked(t *testing.T) {
	msg := pdosReply(4)
	binary.BigEndian.PutUint16(msg[8:10], 1)
	msg = append(msg, 0xC0, 0x0C, 0, 2, 0, 1, 0, 0, 0, 60, 0, 2, 0xC0, 0x0C) // NS -> question name

	_, err := ParseResponse(msg, 4)
	require.NoError(t, err)
}

func TestParseResponse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		msg     func() []byte
		id      uint16
		wantErr error
	}{
		{
			name:    "shorter than header",
			msg:     func() []byte { return pdosReply(1)[:11] },
			id:      1,
			wantErr: ErrTooShort,
		},
		{
			name: "query instead of reply",
			msg: func() []byte {
				m := pdosReply(1)
				m[2] &^= 0x80
				return m
			},
			id:      1,
			wantErr: ErrNotAMatchingReply,
		},
		{
			name:    "transaction id mismatch",
			msg:     func() []byte { return pdosReply(6829) },
			id:      6828,
			wantErr: ErrNotAMatchingReply,
		},
		{
			name: "servfail",
			msg: func() []byte {
				m := pdosReply(1)
				m[3] |= byte(RCodeServFail)
				return m
			},
			id:      1,
			wantErr: ErrServerError,
		},
		{
			name:    "trailing garbage",
			msg:     func() []byte { return append(pdosReply(1), 0xFF) },
			id:      1,
			wantErr: ErrTrailingOrMissingBytes,
		},
		{
			name: "ancount smaller than the records present",
			msg: func() []byte {
				m := pdosReply(1)
				binary.BigEndian.PutUint16(m[6:8], 0)
				return m
			},
			id:      1,
			wantErr: ErrTrailingOrMissingBytes,
		},
		{
			name:    "question footer missing",
			msg:     func() []byte { return pdosReply(1)[:HeaderSize+20+2] },
			id:      1,
			wantErr: ErrShortSection,
		},
		{
			name:    "record header cut short",
			msg:     func() []byte { return pdosReply(1)[:HeaderSize+24+2+5] },
			id:      1,
			wantErr: ErrShortSection,
		},
		{
			name: "rdlength past end",
			msg: func() []byte {
				m := pdosReply(1)
				return m[:len(m)-1]
			},
			id:      1,
			wantErr: ErrRDataOverflow,
		},
		{
			name: "question name runs off the end",
			msg: func() []byte {
				m := Header{ID: 1, Flags: QRFlag, QDCount: 1}.AppendTo(nil)
				return append(m, 9, 'a', 'b')
			},
			id:      1,
			wantErr: ErrTruncated,
		},
		{
			name: "answer pointer out of range",
			msg: func() []byte {
				m := pdosReply(1)
				m[HeaderSize+24+1] = 0xFF
				return m
			},
			id:      1,
			wantErr: ErrBadPointer,
		},
		{
			name: "no A record",
			msg: func() []byte {
				m := pdosReply(1)
				m[HeaderSize+24+3] = 28 // AAAA with 4 bytes: not an A answer
				return m
			},
			id:      1,
			wantErr: ErrNoAnswerRecord,
		},
		{
			name: "additional with non-root name",
			msg: func() []byte {
				m := withOPT(pdosReply(1), 512, nil)
				m[len(m)-11] = 0xC0
				return m
			},
			id:      1,
			wantErr: ErrUnexpectedAdditional,
		},
		{
			name: "additional that is not OPT",
			msg: func() []byte {
				m := withOPT(pdosReply(1), 512, nil)
				m[len(m)-9] = byte(TypeA)
				return m
			},
			id:      1,
			wantErr: ErrUnexpectedAdditional,
		},
		{
			name: "arcount without a record",
			msg: func() []byte {
				m := pdosReply(1)
				binary.BigEndian.PutUint16(m[10:12], 1)
				return m
			},
			id:      1,
			wantErr: ErrUnexpectedAdditional,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := ParseResponse(tt.msg(), tt.id)
			require.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrDNSError)
			assert.Equal(t, AnswerSet{}, set, "no partial data on error")
		})
	}
}

func TestParseResponse_MiekgReply(t *testing.T) {
	query := new(mdns.Msg)
	query.SetQuestion("pdos.csail.mit.edu.", mdns.TypeA)
	query.Id = 6828
	query.SetEdns0(1232, false)

	reply := new(mdns.Msg)
	reply.SetReply(query)
	reply.Compress = true
	reply.Answer = append(reply.Answer,
		&mdns.CNAME{
			Hdr:    mdns.RR_Header{Name: "pdos.csail.mit.edu.", Rrtype: mdns.TypeCNAME, Class: mdns.ClassINET, Ttl: 60},
			Target: "www.csail.mit.edu.",
		},
		&mdns.A{
			Hdr: mdns.RR_Header{Name: "www.csail.mit.edu.", Rrtype: mdns.TypeA, Class: mdns.ClassINET, Ttl: 300},
			A:   net.ParseIP("128.52.129.126"),
		},
	)
	reply.SetEdns0(4096, false)
	raw := runtimex.PanicOnError1(reply.Pack())

	set, err := ParseResponse(raw, 6828)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("128.52.129.126"), set.Addr)
	assert.Equal(t, uint32(300), set.TTL)
	assert.Equal(t, uint16(4096), set.EDNSPayloadSize)
}

func TestParseResponse_ReplyToBuiltQuery(t *testing.T) {
	raw, err := BuildQuery("example.org.", 77)
	require.NoError(t, err)

	query := new(mdns.Msg)
	require.NoError(t, query.Unpack(raw))
	reply := new(mdns.Msg)
	reply.SetReply(query)
	reply.Answer = []mdns.RR{&mdns.A{
		Hdr: mdns.RR_Header{Name: "example.org.", Rrtype: mdns.TypeA, Class: mdns.ClassINET, Ttl: 5},
		A:   net.ParseIP("192.0.2.7"),
	}}

	set, err := ParseResponse(runtimex.PanicOnError1(reply.Pack()), 77)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.0.2.7"), set.Addr)
}
