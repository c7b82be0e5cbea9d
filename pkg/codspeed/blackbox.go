package codspeed

import "runtime"

// BlackBox returns v unchanged while hiding it from the optimizer, so work
// whose result flows through it is never eliminated.
//
//go:noinline
func BlackBox[T any](v T) T {
	runtime.KeepAlive(&v)
	return v
}
