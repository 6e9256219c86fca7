package model

import (
	"encoding/binary"
	"math"

	"github.com/m-mizutani/goerr/v2"
)

// Vector is a fixed-length embedding vector.
type Vector []float32

// Blob packs the vector as contiguous little-endian IEEE-754 32-bit floats
// with no header. The length is recovered from the byte count on decode.
func (v Vector) Blob() []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// VectorFromBlob decodes a packed float32 vector produced by Blob.
func VectorFromBlob(blob []byte) (Vector, error) {
	if len(blob)%4 != 0 {
		return nil, goerr.New("embedding blob size is not a multiple of 4", goerr.V("size", len(blob)))
	}

	v := make(Vector, len(blob)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}

// Dot returns the dot product of two vectors of equal length.
func (v Vector) Dot(other Vector) (float64, error) {
	if len(v) != len(other) {
		return 0, goerr.Wrap(ErrDimensionMismatch, "vector lengths differ",
			goerr.V("left", len(v)), goerr.V("right", len(other)))
	}

	var sum float64
	for i := range v {
		sum += float64(v[i]) * float64(other[i])
	}
	return sum, nil
}
