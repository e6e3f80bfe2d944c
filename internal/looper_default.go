//go:build !wasm

package internal

import (
	"sync"

	"github.com/petermattis/goid"
)

var loopers sync.Map

// CurrentLooper returns the looper owned by the calling goroutine, creating it on first use.
func CurrentLooper() *Looper {
	return LooperOf(currentGoroutine())
}

// LooperOf returns the looper owned by goroutine gid, creating it on first use.
func LooperOf(gid int64) *Looper {
	if l, ok := loopers.Load(gid); ok {
		return l.(*Looper)
	}

	actual, _ := loopers.LoadOrStore(gid, NewLooper())
	return actual.(*Looper)
}

// ReleaseLooper forgets the calling goroutine's looper.
func ReleaseLooper() {
	loopers.Delete(currentGoroutine())
}

func currentGoroutine() int64 {
	return goid.Get()
}
