// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package netutil provides small, dependency-free helpers for working with
// link-layer addresses.
package netutil

import (
	"fmt"
	"strconv"
	"strings"

	ierrors "grimm.is/interceptor/internal/errors"
)

// MAC is a 6-byte hardware address compared by value.
type MAC [6]byte

// ParseMAC parses the canonical "hh:hh:hh:hh:hh:hh" form (case-insensitive,
// two hex digits per octet, exactly six octets). Any other shape fails with
// an errors.KindValidation error tagged "code"="InvalidMac".
func ParseMAC(s string) (MAC, error) {
	var mac MAC
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return mac, invalidMAC(s)
	}
	for i, p := range parts {
		if len(p) != 2 {
			return mac, invalidMAC(s)
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return mac, invalidMAC(s)
		}
		mac[i] = byte(v)
	}
	return mac, nil
}

func invalidMAC(raw string) error {
	err := ierrors.Errorf(ierrors.KindValidation, "invalid MAC address %q", raw)
	return ierrors.Attr(err, "code", "InvalidMac")
}

// String renders the canonical lower-case, colon-separated form.
func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// GoString renders the debug form used in %#v and test failure output.
func (m MAC) GoString() string {
	return fmt.Sprintf("netutil.MAC{%02X, %02X, %02X, %02X, %02X, %02X}", m[0], m[1], m[2], m[3], m[4], m[5])
}

// Equal reports whether two MACs hold the same six bytes. MAC already
// supports == since it is a fixed-size array; Equal exists for readability
// at call sites that compare against a pointer or an any.
func (m MAC) Equal(other MAC) bool {
	return m == other
}
