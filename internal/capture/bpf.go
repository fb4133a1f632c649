// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package capture

import (
	"fmt"

	"golang.org/x/net/bpf"
)

// FixedFilter is the one BPF pre-filter the interceptor ever installs:
// pass IPv4 TCP frames with SYN or ACK set, or IPv4 UDP frames from source
// port 53 carrying a DNS response (QR bit set). Compiling an arbitrary
// tcpdump-style filter string is explicitly out of scope for the core (it
// is the capture source's own concern); this package only ever assembles
// this single known program, grounded directly in its text.
const FixedFilter = `tcp[13] & 2 != 0 or tcp[13] & 16 != 0 or (udp src port 53 and udp[2] & 0x80 != 0)`

// In the "tcp[13]"/"udp[2]" notation above, tcp[13] indexes from the start
// of the TCP header (the flags byte), as in tcpdump. udp[2] is read here as
// byte 2 of the UDP *payload* (i.e. DNS message byte 2, the flags byte whose
// top bit is QR) rather than byte 2 of the 8-byte UDP header -- the only
// reading under which "QR bit" in the spec's own description makes sense.
const (
	ethTypeOffset = 12
	ipProtoOffset = 23
	ihlOffset     = 14 // IP header start; low nibble * 4 = header length

	tcpFlagsRelOffset = 27 // ethHeaderLen(14) + tcpFlagsOffset(13), added to X=ihl*4
	udpPortRelOffset  = 14 // ethHeaderLen(14) + 0, added to X=ihl*4
	dnsFlagsRelOffset = 24 // ethHeaderLen(14) + udpHeaderLen(8) + 2, added to X=ihl*4

	etherTypeIPv4 = 0x0800
	ipProtoTCP    = 6
	ipProtoUDP    = 17
	tcpSynOrAck   = 0x12 // bit 0x02 (SYN) | bit 0x10 (ACK)
	dnsQRBit      = 0x80
	dnsSrcPort    = 53
)

// AssembleFixedFilter compiles FixedFilter into raw BPF instructions
// suitable for SO_ATTACH_FILTER. filterString must equal FixedFilter
// exactly; anything else is rejected since no general compiler exists here.
func AssembleFixedFilter(filterString string) ([]bpf.RawInstruction, error) {
	if filterString != FixedFilter {
		return nil, fmt.Errorf("capture: unsupported filter (only the fixed interceptor filter is compiled): %q", filterString)
	}

	prog := []bpf.Instruction{
		// 0
		bpf.LoadAbsolute{Off: ethTypeOffset, Size: 2},
		// 1: not IPv4 -> reject (index 15)
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: etherTypeIPv4, SkipTrue: 13},
		// 2
		bpf.LoadAbsolute{Off: ipProtoOffset, Size: 1},
		// 3: not TCP -> go to the UDP check block (index 8)
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: ipProtoTCP, SkipFalse: 4},
		// 4: X = IHL * 4
		bpf.LoadMemShift{Off: ihlOffset},
		// 5: A = TCP flags byte
		bpf.LoadIndirect{Off: tcpFlagsRelOffset, Size: 1},
		// 6: SYN or ACK not set -> reject (index 15)
		bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: tcpSynOrAck, SkipFalse: 8},
		// 7: accept
		bpf.RetConstant{Val: 0xffffffff},
		// 8: A still holds the IP protocol byte from instruction 2; not UDP -> reject
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: ipProtoUDP, SkipTrue: 6},
		// 9: X = IHL * 4
		bpf.LoadMemShift{Off: ihlOffset},
		// 10: A = UDP source port
		bpf.LoadIndirect{Off: udpPortRelOffset, Size: 2},
		// 11: source port != 53 -> reject
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: dnsSrcPort, SkipTrue: 3},
		// 12: A = DNS message flags byte
		bpf.LoadIndirect{Off: dnsFlagsRelOffset, Size: 1},
		// 13: QR bit not set -> reject
		bpf.JumpIf{Cond: bpf.JumpBitsSet, Val: dnsQRBit, SkipFalse: 1},
		// 14: accept
		bpf.RetConstant{Val: 0xffffffff},
		// 15: reject
		bpf.RetConstant{Val: 0},
	}

	return bpf.Assemble(prog)
}
