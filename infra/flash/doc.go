// Package flash models a fixed, sector-erasable flash region.
// It exposes raw read/write/erase over absolute offsets and the sector
// layout of the region, with an in-memory and a file-backed implementation.
//
// Writes follow NOR semantics: an erased byte reads 0xFF and a write can
// only clear bits, so rewriting a programmed byte without an erase yields
// the bitwise AND of old and new contents.
package flash
