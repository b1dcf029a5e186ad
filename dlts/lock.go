package dlts

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// goroutineID parses the calling goroutine's ID out of its stack header.
// Lock ownership has to follow the calling goroutine so that protocol
// calls nested under an outer acquisition pass through while a different
// goroutine is rejected.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// first line reads "goroutine <id> [<state>]:"
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// comLock is a reentrant mutex with non-blocking and timed acquisition.
// Releasing without holding is a no-op.
type comLock struct {
	mu    sync.Mutex
	owner uint64
	depth int
	sem   chan struct{}
}

func newComLock() *comLock {
	return &comLock{sem: make(chan struct{}, 1)}
}

// acquire takes the lock for the calling goroutine. Nested acquisitions
// by the holder succeed immediately. With block set, the call waits up to
// timeout (forever when timeout is negative); otherwise it fails fast.
func (l *comLock) acquire(block bool, timeout time.Duration) bool {
	gid := goroutineID()

	l.mu.Lock()
	if l.depth > 0 && l.owner == gid {
		l.depth++
		l.mu.Unlock()
		return true
	}
	l.mu.Unlock()

	switch {
	case !block:
		select {
		case l.sem <- struct{}{}:
		default:
			return false
		}
	case timeout >= 0:
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case l.sem <- struct{}{}:
		case <-timer.C:
			return false
		}
	default:
		l.sem <- struct{}{}
	}

	l.mu.Lock()
	l.owner = gid
	l.depth = 1
	l.mu.Unlock()
	return true
}

func (l *comLock) tryAcquire() bool {
	return l.acquire(false, 0)
}

// release drops one level of ownership. Calls by a non-holder are
// ignored.
func (l *comLock) release() {
	gid := goroutineID()

	l.mu.Lock()
	if l.depth == 0 || l.owner != gid {
		l.mu.Unlock()
		return
	}
	l.depth--
	if l.depth > 0 {
		l.mu.Unlock()
		return
	}
	l.owner = 0
	l.mu.Unlock()
	<-l.sem
}
