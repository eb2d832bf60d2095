// Package protocol implements the three-byte-header frame codec used to
// exchange typed command/response messages between an Opta Blueprint
// controller and its daisy-chained expansion peripherals.
//
// A frame on the wire is:
//
//	byte 0: cmd              (Set, Get, AnsGet, AnsSet)
//	byte 1: arg               (operation code)
//	byte 2: len               (declared payload length, 0..45)
//	bytes 3..3+len:  payload
//	byte 3+len:      crc8     (only when CRC is enabled)
//
// The codec is stateless: Build produces a frame ready for the wire, Parse
// validates one against the length contract for its (cmd, arg) pair and
// optionally its CRC-8.
package protocol
