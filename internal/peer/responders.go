package peer

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"sync/atomic"

	mdns "github.com/miekg/dns"

	"github.com/jroosing/nettest/internal/transport"
)

// Echo reflects every datagram back to its sender unchanged.
type Echo struct{}

func (Echo) Respond(from transport.Datagram) ([]byte, bool) {
	return from.Payload, true
}

// DNSResponder is a minimal authoritative resolver for A records. Queries
// for names it does not know get NXDOMAIN; anything that does not parse as
// a DNS query is ignored.
type DNSResponder struct {
	// TTL is the time to live of every answer.
	TTL uint32
	// EDNSPayloadSize, when non-zero, adds an OPT record to every reply.
	// Queries carrying their own OPT record always get one back.
	EDNSPayloadSize uint16
	Logger          *slog.Logger

	records map[string]netip.Addr
}

// NewDNSResponder answers each name in records with its address.
func NewDNSResponder(records map[string]netip.Addr, ttl uint32) *DNSResponder {
	r := &DNSResponder{TTL: ttl, records: make(map[string]netip.Addr, len(records))}
	for name, addr := range records {
		r.records[mdns.CanonicalName(name)] = addr.Unmap()
	}
	return r
}

func (r *DNSResponder) Respond(from transport.Datagram) ([]byte, bool) {
	req := new(mdns.Msg)
	if err := req.Unpack(from.Payload); err != nil || req.Response || len(req.Question) == 0 {
		r.logger().Debug("ignoring non-query", "from", from.AddrPort().String(), "len", len(from.Payload))
		return nil, false
	}

	resp := new(mdns.Msg)
	resp.SetReply(req)
	resp.RecursionAvailable = true
	resp.Compress = true

	for _, q := range req.Question {
		if q.Qtype != mdns.TypeA || q.Qclass != mdns.ClassINET {
			continue
		}
		addr, ok := r.records[mdns.CanonicalName(q.Name)]
		if !ok || !addr.Is4() {
			continue
		}
		resp.Answer = append(resp.Answer, &mdns.A{
			Hdr: mdns.RR_Header{Name: q.Name, Rrtype: mdns.TypeA, Class: mdns.ClassINET, Ttl: r.TTL},
			A:   net.IP(addr.AsSlice()),
		})
	}
	if len(resp.Answer) == 0 {
		resp.Rcode = mdns.RcodeNameError
	}

	limit := mdns.MinMsgSize
	if opt := req.IsEdns0(); opt != nil {
		resp.SetEdns0(opt.UDPSize(), false)
		limit = max(limit, int(opt.UDPSize()))
	} else if r.EDNSPayloadSize > 0 {
		resp.SetEdns0(r.EDNSPayloadSize, false)
	}
	// Replies that do not fit the client's UDP limit lose records and get TC.
	resp.Truncate(limit)

	out, err := resp.Pack()
	if err != nil {
		r.logger().Warn("pack reply failed", "err", err)
		return nil, false
	}
	return out, true
}

func (r *DNSResponder) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Recorder queues every datagram it is handed and never replies. Datagrams
// beyond its capacity are dropped and counted.
type Recorder struct {
	ch      chan transport.Datagram
	dropped atomic.Uint64
}

// NewRecorder returns a recorder holding up to capacity datagrams.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 1
	}
	return &Recorder{ch: make(chan transport.Datagram, capacity)}
}

func (r *Recorder) Respond(from transport.Datagram) ([]byte, bool) {
	select {
	case r.ch <- from:
	default:
		r.dropped.Add(1)
	}
	return nil, false
}

// Next returns the oldest recorded datagram, waiting for one if necessary.
func (r *Recorder) Next(ctx context.Context) (transport.Datagram, error) {
	select {
	case d := <-r.ch:
		return d, nil
	case <-ctx.Done():
		return transport.Datagram{}, ctx.Err()
	}
}

// Dropped is the number of datagrams that did not fit.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }
