// Package controller implements the host side of the Opta Blueprint bus:
// slot bookkeeping, two-phase address arbitration and discovery, the
// configuration shadow, and the typed command dispatcher that turns a
// host call into a framed bus transaction and back.
package controller
