// Package dns provides the DNS wire-format pieces nettest needs: a QName codec,
// a single-question query builder and a strict response parser that extracts
// the first A record.
//
// Standards Compliance:
//
//   - RFC 1035: Domain Names - Implementation and Specification (header, names, compression)
//   - RFC 6891: Extension Mechanisms for DNS (OPT pseudo-record in the additional section)
//
// Error Handling:
//
// Every failure wraps ErrDNSError and one of the more specific sentinels below,
// so callers can test either the family or the exact cause with errors.Is.
// Nothing in this package returns partially decoded data together with an error.
package dns

import (
	"errors"
	"fmt"
)

var (
	// ErrDNSError is the sentinel for all DNS protocol violations.
	ErrDNSError = errors.New("dns wire error")

	// Name encoding.
	ErrLabelTooLong = fmt.Errorf("%w: label longer than 63 bytes", ErrDNSError)
	ErrEmptyLabel   = fmt.Errorf("%w: empty label", ErrDNSError)
	ErrNameTooLong  = fmt.Errorf("%w: encoded name longer than 255 bytes", ErrDNSError)

	// Name decoding.
	ErrTruncated   = fmt.Errorf("%w: name runs past end of message", ErrDNSError)
	ErrBadPointer  = fmt.Errorf("%w: compression pointer out of range", ErrDNSError)
	ErrPointerLoop = fmt.Errorf("%w: compression pointer loop", ErrDNSError)

	// Response parsing.
	ErrTooShort               = fmt.Errorf("%w: message shorter than header", ErrDNSError)
	ErrNotAMatchingReply      = fmt.Errorf("%w: not a reply to the outstanding query", ErrDNSError)
	ErrServerError            = fmt.Errorf("%w: server returned an error rcode", ErrDNSError)
	ErrShortSection           = fmt.Errorf("%w: fixed fields run past end of message", ErrDNSError)
	ErrRDataOverflow          = fmt.Errorf("%w: rdata runs past end of message", ErrDNSError)
	ErrUnexpectedAdditional   = fmt.Errorf("%w: unexpected additional record", ErrDNSError)
	ErrTrailingOrMissingBytes = fmt.Errorf("%w: consumed length differs from message length", ErrDNSError)
	ErrNoAnswerRecord         = fmt.Errorf("%w: no A record in answer section", ErrDNSError)
)
