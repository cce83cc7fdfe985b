package hook

import (
	"io"
	"time"
)

// DefaultReadTimeout bounds how long a hook process waits for its stdin
// payload. The host usually writes the event immediately; the timeout only
// matters when a hook is invoked with no payload at all, which must resolve
// to the empty event rather than hang the process.
const DefaultReadTimeout = 5 * time.Second

// Read consumes one event payload from r, waiting at most timeout for the
// read to finish. Timeout, read errors, and malformed JSON all resolve to
// the empty event; Read never returns an error.
//
// The read runs in a goroutine that is abandoned on timeout. The process is
// short-lived, so an abandoned stdin read does not leak anything that
// outlives the invocation.
func Read(r io.Reader, timeout time.Duration) Event {
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		data, err := io.ReadAll(r)
		ch <- result{data: data, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return Event{}
		}
		return Normalize(res.data)
	case <-time.After(timeout):
		return Event{}
	}
}
