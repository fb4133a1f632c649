// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package capture drives the platform capture source: it owns the single
// blocking read loop, classifies each frame, and routes it to the DNS
// learner, the policy engine, or the RST forger. The capture source itself
// (the raw-socket library and the BPF pre-filter it installs) is treated as
// an external collaborator behind the narrow Source interface -- this
// package never interprets the wire beyond what Source promises: frames
// delivered with the Ethernet header intact.
package capture

import "time"

// Header carries the per-frame metadata the capture source attaches.
type Header struct {
	Timestamp time.Time
}

// Source is the capture source contract: open a device, install a
// kernel-level pre-filter, read frames, and transmit forged ones. A real
// implementation wraps a raw AF_PACKET socket (see LinuxSource); tests use
// an in-memory fake.
type Source interface {
	// SetFilter installs a BPF pre-filter. The fixed filter string used by
	// the capture loop is FixedFilter in bpf.go; a Source only has to support
	// that one program, not an arbitrary filter-string compiler.
	SetFilter(filterString string) error

	// NextPacket blocks for the next frame. It returns io.EOF on a clean
	// end of stream.
	NextPacket() (Header, []byte, error)

	// Send transmits a raw frame, Ethernet header included.
	Send(frame []byte) error

	Close() error
}
