// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package capture

import (
	"io"
	"net"
	"time"

	"github.com/mdlayher/packet"

	ierrors "grimm.is/interceptor/internal/errors"
)

// allInterfaces is ETH_P_ALL (0x0003) in network byte order, as AF_PACKET
// sockets expect their protocol argument.
var allInterfaces = htons(0x0003)

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

// LinuxSource is the production capture source: a raw AF_PACKET socket in
// promiscuous mode, opened via mdlayher/packet. SetFilter re-opens the
// socket with the freshly assembled BPF program, since the library applies
// a conn's filter at construction time rather than after the fact.
type LinuxSource struct {
	ifi  *net.Interface
	conn *packet.Conn
}

// Open binds to ifaceName in promiscuous, immediate-mode capture. An empty
// ifaceName triggers DefaultInterface auto-lookup.
func Open(ifaceName string) (*LinuxSource, error) {
	ifi, err := resolveInterface(ifaceName)
	if err != nil {
		return nil, err
	}

	conn, err := packet.Listen(ifi, packet.Raw, int(allInterfaces), nil)
	if err != nil {
		return nil, ierrors.Wrapf(err, ierrors.KindUnavailable, "failed to open capture socket on %s", ifi.Name)
	}
	if err := conn.SetPromiscuous(true); err != nil {
		conn.Close()
		return nil, ierrors.Wrapf(err, ierrors.KindUnavailable, "failed to enable promiscuous mode on %s", ifi.Name)
	}

	return &LinuxSource{ifi: ifi, conn: conn}, nil
}

// resolveInterface implements the device section's "missing or no
// interface key -> Lookup" rule: pick the first up, non-loopback interface
// with a hardware address.
func resolveInterface(name string) (*net.Interface, error) {
	if name != "" {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return nil, ierrors.Wrapf(err, ierrors.KindNotFound, "interface %q not found", name)
		}
		return ifi, nil
	}
	return DefaultInterface()
}

// DefaultInterface picks the device the capture source would auto-select
// when no [device].interface key is configured.
func DefaultInterface() (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, ierrors.Wrapf(err, ierrors.KindUnavailable, "failed to enumerate interfaces")
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		if ifi.Flags&net.FlagUp == 0 {
			continue
		}
		if len(ifi.HardwareAddr) == 0 {
			continue
		}
		cp := ifi
		return &cp, nil
	}
	return nil, ierrors.Errorf(ierrors.KindNotFound, "no usable capture device found")
}

func (s *LinuxSource) SetFilter(filterString string) error {
	insns, err := AssembleFixedFilter(filterString)
	if err != nil {
		return err
	}

	if err := s.conn.Close(); err != nil {
		return ierrors.Wrap(err, ierrors.KindUnavailable, "failed to close capture socket before installing filter")
	}
	conn, err := packet.Listen(s.ifi, packet.Raw, int(allInterfaces), &packet.Config{Filter: insns})
	if err != nil {
		return ierrors.Wrap(err, ierrors.KindUnavailable, "failed to reopen capture socket with filter")
	}
	if err := conn.SetPromiscuous(true); err != nil {
		conn.Close()
		return ierrors.Wrap(err, ierrors.KindUnavailable, "failed to re-enable promiscuous mode")
	}
	s.conn = conn
	return nil
}

func (s *LinuxSource) NextPacket() (Header, []byte, error) {
	buf := make([]byte, 65536)
	n, _, err := s.conn.ReadFrom(buf)
	if err != nil {
		if err == io.EOF {
			return Header{}, nil, io.EOF
		}
		return Header{}, nil, ierrors.Wrap(err, ierrors.KindUnavailable, "capture read failed")
	}
	return Header{Timestamp: time.Now()}, buf[:n], nil
}

func (s *LinuxSource) Send(frame []byte) error {
	addr := &packet.Addr{HardwareAddr: s.ifi.HardwareAddr}
	if _, err := s.conn.WriteTo(frame, addr); err != nil {
		return ierrors.Wrap(err, ierrors.KindUnavailable, "capture send failed")
	}
	return nil
}

func (s *LinuxSource) Close() error {
	return s.conn.Close()
}
