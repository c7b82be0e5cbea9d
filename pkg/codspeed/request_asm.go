//go:build amd64 || arm64

package codspeed

import "unsafe"

// clientRequest issues a simulator client request. args holds the request
// code followed by up to five arguments. It returns def when not simulated.
//
//go:noescape
func clientRequest(def uint64, args *[6]uint64) uint64

func bytesAddr(b []byte) uint64 {
	return uint64(uintptr(unsafe.Pointer(unsafe.SliceData(b))))
}
