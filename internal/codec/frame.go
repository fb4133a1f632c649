// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package codec

import (
	"encoding/binary"
	"net/netip"

	ierrors "grimm.is/interceptor/internal/errors"
	"grimm.is/interceptor/internal/netutil"
)

const (
	ethHeaderLen = 14
	ethTypeIPv4  = 0x0800
	protoTCP     = 6
	protoUDP     = 17

	flagSYN = 0x02
	flagACK = 0x10
	flagRST = 0x04
)

// Kind classifies a frame for dispatch by the capture loop.
type Kind int

const (
	KindOther Kind = iota
	KindTCP
	KindUDP
)

// Classification is the result of inspecting a frame's headers without
// extracting its full field set.
type Classification struct {
	Kind Kind
	SYN  bool
	ACK  bool
}

// Classify inspects the Ethernet type, IP version, IP protocol and, for
// TCP, the flag byte. A TCP frame is only reported as KindTCP when at least
// one of SYN or ACK is set, matching the capture-level BPF pre-filter; any
// other IPv4 TCP frame falls through to KindOther, as does anything that
// isn't IPv4 TCP or IPv4 UDP.
func Classify(frame []byte) Classification {
	if len(frame) < ethHeaderLen+20 {
		return Classification{Kind: KindOther}
	}
	if binary.BigEndian.Uint16(frame[12:14]) != ethTypeIPv4 {
		return Classification{Kind: KindOther}
	}
	if frame[ethHeaderLen]>>4 != 4 {
		return Classification{Kind: KindOther}
	}
	proto := frame[23]
	switch proto {
	case protoTCP:
		off := tcpOffset(frame)
		if len(frame) < off+20 {
			return Classification{Kind: KindOther}
		}
		flags := frame[off+13]
		syn := flags&flagSYN != 0
		ack := flags&flagACK != 0
		if !syn && !ack {
			return Classification{Kind: KindOther}
		}
		return Classification{Kind: KindTCP, SYN: syn, ACK: ack}
	case protoUDP:
		return Classification{Kind: KindUDP}
	default:
		return Classification{Kind: KindOther}
	}
}

// ihl returns the IPv4 header length in bytes: the low nibble of the first
// IP header byte, times 4.
func ihl(frame []byte) int {
	return int(frame[ethHeaderLen]&0x0f) * 4
}

func tcpOffset(frame []byte) int {
	return ethHeaderLen + ihl(frame)
}

// TCPEvent is the tuple extracted from an observed IPv4 TCP frame.
type TCPEvent struct {
	SrcIP   netip.Addr
	SrcPort uint16
	SrcMAC  netutil.MAC
	DstIP   netip.Addr
	DstPort uint16
	DstMAC  netutil.MAC
	Seq     uint32
	Ack     uint32
	Window  uint16
	SYN     bool
	ACK     bool
}

// TCPEvent extracts the TCP event tuple from a frame already known (via
// Classify) to be IPv4 TCP. It re-derives offsets independently so it can
// be called directly from tests against a raw buffer.
func TCPEvent(frame []byte) (TCPEvent, error) {
	var ev TCPEvent
	if len(frame) < ethHeaderLen+20 {
		return ev, decodeErr("frame shorter than Ethernet+IPv4 headers")
	}
	off := tcpOffset(frame)
	if len(frame) < off+20 {
		return ev, decodeErr("frame shorter than Ethernet+IPv4+TCP headers")
	}

	copy(ev.SrcMAC[:], frame[6:12])
	copy(ev.DstMAC[:], frame[0:6])

	ipHdr := frame[ethHeaderLen:]
	srcIP, ok := netip.AddrFromSlice(ipHdr[12:16])
	if !ok {
		return ev, decodeErr("malformed source IP")
	}
	dstIP, ok := netip.AddrFromSlice(ipHdr[16:20])
	if !ok {
		return ev, decodeErr("malformed destination IP")
	}
	ev.SrcIP = srcIP
	ev.DstIP = dstIP

	tcpHdr := frame[off : off+20]
	ev.SrcPort = binary.BigEndian.Uint16(tcpHdr[0:2])
	ev.DstPort = binary.BigEndian.Uint16(tcpHdr[2:4])
	ev.Seq = binary.BigEndian.Uint32(tcpHdr[4:8])
	ev.Ack = binary.BigEndian.Uint32(tcpHdr[8:12])
	ev.Window = binary.BigEndian.Uint16(tcpHdr[14:16])
	flags := tcpHdr[13]
	ev.SYN = flags&flagSYN != 0
	ev.ACK = flags&flagACK != 0

	return ev, nil
}

func decodeErr(msg string) error {
	err := ierrors.Errorf(ierrors.KindValidation, "%s", msg)
	return ierrors.Attr(err, "code", "PerFrameDecodeError")
}
