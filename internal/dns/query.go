package dns

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// BuildQuery serializes a recursive A/IN query for name with the given transaction ID.
func BuildQuery(name string, id uint16) ([]byte, error) {
	return AppendQuery(make([]byte, 0, HeaderSize+len(name)+2+questionFooterSize), name, id)
}

// AppendQuery appends a single-question query to dst and returns the extended slice.
//
// Layout: 12-byte header (QDCOUNT=1, RD=1, other counts 0), the encoded qname,
// then QTYPE=A and QCLASS=IN. Names containing non-ASCII runes are converted to
// their IDNA form first. On error dst is returned unchanged.
func AppendQuery(dst []byte, name string, id uint16) ([]byte, error) {
	wireName, err := toASCII(name)
	if err != nil {
		return dst, err
	}

	start := len(dst)
	dst = Header{ID: id, Flags: RDFlag, QDCount: 1}.AppendTo(dst)
	dst, err = AppendName(dst, wireName)
	if err != nil {
		return dst[:start], err
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(TypeA))
	dst = binary.BigEndian.AppendUint16(dst, uint16(ClassIN))
	return dst, nil
}

func toASCII(name string) (string, error) {
	for i := 0; i < len(name); i++ {
		if name[i] >= utf8.RuneSelf {
			fqdn := strings.HasSuffix(name, ".")
			ascii, err := idna.Lookup.ToASCII(strings.TrimSuffix(name, "."))
			if err != nil {
				return "", fmt.Errorf("%w: idna: %v", ErrDNSError, err)
			}
			if fqdn {
				ascii += "."
			}
			return ascii, nil
		}
	}
	return name, nil
}
