//go:build !amd64 && !arm64

package codspeed

func clientRequest(def uint64, _ *[6]uint64) uint64 { return def }

func bytesAddr([]byte) uint64 { return 0 }
