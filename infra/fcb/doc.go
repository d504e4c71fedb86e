// Package fcb implements a flash circular buffer: an append-only log of
// variable-length entries over a fixed ring of erasable sectors.
//
// Each sector starts with a header carrying a magic number, a format
// version and a monotonically increasing sector id. Entries are framed as
//
//	[len:2][payload][crc:4]
//
// with every field padded to the flash write alignment. Space is reserved
// with Append and becomes visible to GetNext only after the reservation is
// committed. When the ring is full, Rotate erases the oldest sector and its
// entries are gone for good.
package fcb
