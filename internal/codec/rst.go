// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package codec

import "encoding/binary"

// rstFrameLen is the size of a forged Ethernet+IPv4+TCP RST frame: 14 bytes
// of Ethernet header, a 20-byte IPv4 header with no options, and a 20-byte
// TCP header with no options.
const rstFrameLen = 14 + 20 + 20

// BuildRST constructs a 54-byte RST frame derived from an observed SYN or
// ACK frame. The link layer keeps the original sender's addresses so the
// forged segment still looks like it came from the same host on the wire;
// IP and TCP addressing is reversed so the RST lands back on the
// connection's originator. isSyn selects the sequence number rule: when
// the trigger frame was a SYN, the RST's sequence number is the observed
// sequence plus one; otherwise it is the observed ack number.
func BuildRST(frame []byte, isSyn bool) ([]byte, error) {
	ev, err := TCPEvent(frame)
	if err != nil {
		return nil, err
	}

	out := make([]byte, rstFrameLen)

	// Ethernet: addresses unchanged from the observed frame.
	copy(out[0:6], ev.DstMAC[:])
	copy(out[6:12], ev.SrcMAC[:])
	binary.BigEndian.PutUint16(out[12:14], ethTypeIPv4)

	ip := out[14:34]
	ip[0] = 0x45 // version 4, IHL 5
	ip[1] = 0x00 // DSCP/ECN
	binary.BigEndian.PutUint16(ip[2:4], 40)     // total length
	binary.BigEndian.PutUint16(ip[4:6], 0x0650) // fixed identification
	binary.BigEndian.PutUint16(ip[6:8], 0x4000) // DF, no fragment offset
	ip[8] = 0x3c                                // TTL 60
	ip[9] = protoTCP
	// checksum at ip[10:12] left zero until computed below.
	srcIP := ev.DstIP.As4()
	dstIP := ev.SrcIP.As4()
	copy(ip[12:16], srcIP[:])
	copy(ip[16:20], dstIP[:])
	binary.BigEndian.PutUint16(ip[10:12], InternetChecksum(ip))

	tcp := out[34:54]
	binary.BigEndian.PutUint16(tcp[0:2], ev.DstPort)
	binary.BigEndian.PutUint16(tcp[2:4], ev.SrcPort)
	seq := ev.Ack
	if isSyn {
		seq = ev.Seq + 1
	}
	binary.BigEndian.PutUint32(tcp[4:8], seq)
	binary.BigEndian.PutUint32(tcp[8:12], 0) // ack number
	tcp[12] = 0x50                           // data offset 5, reserved 0
	tcp[13] = flagRST
	binary.BigEndian.PutUint16(tcp[14:16], ev.Window)
	// checksum at tcp[16:18] left zero until computed below.
	binary.BigEndian.PutUint16(tcp[18:20], 0) // urgent pointer

	binary.BigEndian.PutUint16(tcp[16:18], tcpChecksum(srcIP[:], dstIP[:], tcp))

	return out, nil
}

// tcpChecksum computes the TCP checksum over the IPv4 pseudo-header
// (source IP, destination IP, zero byte, protocol, TCP length) followed by
// the TCP header itself, with the checksum field zeroed.
func tcpChecksum(srcIP, dstIP []byte, tcpHeader []byte) uint16 {
	pseudo := make([]byte, 12+len(tcpHeader))
	copy(pseudo[0:4], srcIP)
	copy(pseudo[4:8], dstIP)
	pseudo[8] = 0x00
	pseudo[9] = protoTCP
	binary.BigEndian.PutUint16(pseudo[10:12], uint16(len(tcpHeader)))
	copy(pseudo[12:], tcpHeader)
	return InternetChecksum(pseudo)
}
