// Package expansion implements the peripheral side of the Opta Blueprint
// bus: the state machine, address arbitration responses, watchdog, flash
// nameplate, and the three typed peripheral families (digital, analog,
// display/custom) that answer a controller's frames.
//
// A Peripheral is driven by two things: the bus, through its OnReceive and
// OnRequest callbacks (see package bus), and its own Tick method, called
// once per scheduling quantum from a host program's main loop. Tick is
// where all the work the bus callbacks must not do — state transitions,
// channel reads, watchdog expiry — actually happens, matching the
// single-threaded cooperative model real firmware runs under.
package expansion
