// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package capture

import (
	"errors"
	"io"
	"net/netip"

	"github.com/google/uuid"

	"grimm.is/interceptor/internal/codec"
	"grimm.is/interceptor/internal/dnslearn"
	"grimm.is/interceptor/internal/logging"
	"grimm.is/interceptor/internal/policy"
)

// Resolver performs the reverse-DNS fallback lookup (internal/resolver).
type Resolver interface {
	Lookup(ip netip.Addr) (string, bool)
}

// Recorder observes loop outcomes for internal/metrics. A nil Recorder is
// valid; every method is a no-op in that case.
type Recorder interface {
	Reset()
	Monitor()
	Ignore()
	DecodeError()
	DNSParseError()
	SendError()
	LearnerSize(n int)
}

// Loop owns one capture Source for its lifetime and drives the
// single-threaded dispatch loop described by the control-flow spec: classify
// each frame, feed DNS responses to the learner, and ask the policy engine
// what to do with TCP connections.
type Loop struct {
	Source   Source
	Rules    []policy.Rule
	Learner  *dnslearn.Learner
	Resolver Resolver
	Logger   *logging.Logger
	Metrics  Recorder
}

// Run installs the fixed BPF pre-filter and blocks until the source returns
// io.EOF (clean shutdown, nil error) or a transport error (returned as-is).
func (l *Loop) Run() error {
	if err := l.Source.SetFilter(FixedFilter); err != nil {
		return err
	}

	for {
		_, frame, err := l.Source.NextPacket()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		l.dispatch(frame)
	}
}

func (l *Loop) dispatch(frame []byte) {
	class := codec.Classify(frame)
	switch class.Kind {
	case codec.KindTCP:
		l.handleTCP(frame, class)
	case codec.KindUDP:
		l.handleDNS(frame)
	default:
		// Neither a qualifying TCP segment nor a DNS response; the BPF
		// pre-filter should already exclude these, but a software source
		// (or the in-process fake used in tests) may not enforce it.
	}
}

func (l *Loop) handleTCP(frame []byte, class codec.Classification) {
	ev, err := codec.TCPEvent(frame)
	if err != nil {
		l.record(func() { l.Metrics.DecodeError() })
		if l.Logger != nil {
			l.Logger.Debug("dropping undecodable TCP frame: %v", err)
		}
		return
	}

	src := policy.Host{IP: ev.SrcIP, MAC: ev.SrcMAC}
	dst := policy.Host{IP: ev.DstIP, MAC: ev.DstMAC}
	rule, action := policy.Decide(l.Rules, src, dst, l.Learner, l.Resolver)

	switch action {
	case policy.ActionIgnore:
		l.record(func() { l.Metrics.Ignore() })

	case policy.ActionMonitor:
		l.record(func() { l.Metrics.Monitor() })
		if l.Logger != nil {
			l.Logger.Warning("monitor[%s] rule=%s: %s:%d -> %s:%d", uuid.NewString(), rule.Name, ev.SrcIP, ev.SrcPort, ev.DstIP, ev.DstPort)
		}

	case policy.ActionReset:
		l.record(func() { l.Metrics.Reset() })
		rst, err := codec.BuildRST(frame, class.SYN)
		if err != nil {
			if l.Logger != nil {
				l.Logger.Debug("failed to forge RST: %v", err)
			}
			return
		}
		if l.Logger != nil {
			if sent, err := codec.TCPEvent(rst); err == nil {
				l.Logger.Debug("forged RST: %s:%d -> %s:%d seq=%d ack=%d window=%d", sent.SrcIP, sent.SrcPort, sent.DstIP, sent.DstPort, sent.Seq, sent.Ack, sent.Window)
			}
		}
		if err := l.Source.Send(rst); err != nil {
			l.record(func() { l.Metrics.SendError() })
			if l.Logger != nil {
				l.Logger.Error("send-error: %v", err)
			}
		}
	}
}

func (l *Loop) handleDNS(frame []byte) {
	if err := l.Learner.Observe(frame); err != nil {
		l.record(func() { l.Metrics.DNSParseError() })
		if l.Logger != nil {
			l.Logger.Error("dns-parse-error: %v", err)
		}
		return
	}
	l.record(func() { l.Metrics.LearnerSize(l.Learner.Len()) })
}

func (l *Loop) record(f func()) {
	if l.Metrics == nil {
		return
	}
	f()
}
