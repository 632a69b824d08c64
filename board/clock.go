package board

import (
	"sync/atomic"
	"time"
)

var lastStamp int64

// nextTimestamp returns the current Unix-millisecond time, bumped by one
// when two calls land in the same millisecond so consecutive activities and
// saves keep strictly increasing timestamps.
func nextTimestamp() int64 {
	for {
		now := time.Now().UnixMilli()
		last := atomic.LoadInt64(&lastStamp)
		if now <= last {
			now = last + 1
		}
		if atomic.CompareAndSwapInt64(&lastStamp, last, now) {
			return now
		}
	}
}
