// Package logstore persists log entries on a flash circular buffer and
// exports them back through a bounded, resumable read interface.
//
// A Store is bound to one flash area. Write appends one entry, rotating out
// the oldest sector when the ring is full. Read drains entries into a caller
// buffer of any size, splitting entries that do not fit across calls, and
// keeps all resumption state in a fixed-size Cursor:
//
//	var cur logstore.Cursor
//	buf := make([]byte, 256)
//	for {
//	    n, err := store.Read(buf, &cur)
//	    if err != nil {
//	        return err
//	    }
//	    process(buf[:n])
//	    if n == 0 || cur.IsZero() {
//	        break
//	    }
//	}
//
// The zero Cursor both starts an export and marks its end. Export wraps the
// loop for callers that need to tell the two apart.
//
// A Store is not safe for concurrent use. It assumes at most one writer and
// one reader at a time; callers that share it across goroutines must
// serialize access themselves.
package logstore
