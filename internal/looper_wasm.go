//go:build wasm

package internal

import "sync"

var once sync.Once
var globalLooper *Looper

func CurrentLooper() *Looper {
	once.Do(func() {
		globalLooper = NewLooper()
	})

	return globalLooper
}

// LooperOf returns the global looper whatever gid is.
func LooperOf(int64) *Looper {
	return CurrentLooper()
}

// ReleaseLooper is a no-op: wasm runs a single looper for the whole program.
func ReleaseLooper() {}

func currentGoroutine() int64 {
	return 0
}
