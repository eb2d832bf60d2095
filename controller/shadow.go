package controller

import (
	"sort"

	"github.com/arduino-libraries/opta-blueprint/protocol"
)

// ShadowKind identifies which class of configuration a ShadowKey names,
// replacing the original firmware's raw "base + offset" pointer
// arithmetic with a typed sum (see the design notes on pointer-indexed
// register maps).
type ShadowKind int

const (
	KindChannel ShadowKind = iota
	KindPwm
	KindRtdUpdateTime
	KindAddAdc
	KindDacValue
	KindLed
	KindDacDefault
	KindPwmDefault
	KindTimeout
	KindDigitalOut
	KindDigitalDefault
)

// ShadowKey names one entry in a slot's configuration shadow. Channel is
// meaningful only for the per-channel kinds (Channel, Pwm, AddAdc,
// DacValue, DacDefault, PwmDefault); it is ignored for RtdUpdateTime,
// Led, Timeout, DigitalOut and DigitalDefault.
type ShadowKey struct {
	Kind    ShadowKind
	Channel int
}

// Offset layout constants, per §4.6, parameterized by K (analog channel
// count) and P (PWM channel count). A digital slot's shadow never
// populates any of the analog per-channel kinds; it only ever uses
// DigitalOut and DigitalDefault, which sit past the analog ranges in
// this same flat space so every slot, regardless of family, shares one
// Shadow implementation.
const (
	analogK = 8
	analogP = 4
)

// Offset computes the single flat offset key.Kind/key.Channel maps to,
// using the table from §4.6 with K=analogK, P=analogP.
func (k ShadowKey) Offset() int {
	const K, P = analogK, analogP
	switch k.Kind {
	case KindChannel:
		return k.Channel // 0..K
	case KindPwm:
		return K + k.Channel // K..K+P
	case KindRtdUpdateTime:
		return K + P // K+P
	case KindAddAdc:
		return K + P + 1 + k.Channel // K+P+1..2K+P+1
	case KindDacValue:
		return 2*K + P + 1 + k.Channel // 2K+P+1..3K+P+1
	case KindLed:
		return 3*K + P + 1 // 3K+P+1
	case KindDacDefault:
		return 3*K + P + 2 + k.Channel // 3K+P+2..4K+P+2
	case KindPwmDefault:
		return 4*K + P + 2 + k.Channel // 4K+P+2..4K+2P+2
	case KindTimeout:
		return 4*K + 2*P + 2 // 4K+2P+2
	case KindDigitalOut:
		return 4*K + 2*P + 3 // 4K+2P+3
	case KindDigitalDefault:
		return 4*K + 2*P + 4 // 4K+2P+4
	default:
		return -1
	}
}

// shadowEntry is one recorded configuration call: the wire arg that
// would rebuild it on replay, paired with the exact payload bytes the
// peripheral accepted. Storing the arg alongside the bytes (rather than
// deriving it from ShadowKey.Kind alone) matters for KindChannel: five
// different begin-commands (BeginChannel/BeginDAC/BeginRTD/
// BeginDigitalInput/BeginHighImpedance) all configure "what a channel
// currently does" and share that one Kind, but each uses a different
// arg with its own wire length contract.
type shadowEntry struct {
	arg   protocol.Arg
	bytes []byte
}

// Shadow is the slot-local configuration shadow (C6): the authoritative
// record of "what the controller last told this peripheral", replayable
// byte-for-byte after a reset.
type Shadow struct {
	entries map[int]shadowEntry
	used    bool
}

// NewShadow returns an empty shadow.
func NewShadow() *Shadow {
	return &Shadow{entries: make(map[int]shadowEntry)}
}

// Record copies bytes into the shadow at key's offset alongside arg (the
// set-request arg that would reproduce this entry on replay), discarding
// any previous entry there, and marks the shadow as used so a subsequent
// reset requires a replay rather than a platform-default push.
func (s *Shadow) Record(key ShadowKey, arg protocol.Arg, bytes []byte) {
	off := key.Offset()
	s.entries[off] = shadowEntry{arg: arg, bytes: append([]byte(nil), bytes...)}
	s.used = true
}

// ClearOverlay drops the additional-ADC overlay for ch, mirroring the
// expansion package's own per-role invalidation so controller-side state
// never drifts from what the peripheral actually holds.
func (s *Shadow) ClearOverlay(ch int) {
	delete(s.entries, ShadowKey{Kind: KindAddAdc, Channel: ch}.Offset())
}

// Used reports whether any Record call has ever populated this shadow.
// A freshly discovered slot with Used() == false gets the platform
// default pushed instead of a replay (§4.4).
func (s *Shadow) Used() bool { return s.used }

// ReplayInto iterates every present entry in ascending offset order,
// invoking sender with the arg that produced it and its payload. It does
// not pause between calls; any inter-frame pacing is up to sender (the
// discovery replay in discovery.go sends the frames back to back).
func (s *Shadow) ReplayInto(sender func(arg protocol.Arg, bytes []byte)) {
	offsets := make([]int, 0, len(s.entries))
	for off := range s.entries {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)
	for _, off := range offsets {
		e := s.entries[off]
		sender(e.arg, e.bytes)
	}
}
