// Package errors provides classified error handling shared by all insight bot
// components.
//
// Errors are classified into three classes that drive handling decisions:
//
//   - Transient: temporary failures (stream disconnects, timeouts) that callers
//     may retry with backoff
//   - Invalid: malformed input or configuration; retrying will not help
//   - Fatal: unrecoverable conditions (bus bind failure, exhausted reconnect
//     attempts) that should stop the affected component
//
// Wrap an error with context and a class at the point of failure:
//
//	if err := sock.Bind(addr); err != nil {
//	    return errors.WrapFatal(err, "bus", "Publisher", "bind address")
//	}
//
// and branch on the class at the handling site:
//
//	if errors.IsTransient(err) {
//	    // schedule reconnect
//	}
package errors
