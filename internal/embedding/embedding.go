// Package embedding defines the biometric embedding vector type and its
// storage codec.
//
// Embeddings arrive from the extractor already L2-normalized. At rest they
// are serialized as little-endian float32 and encrypted; plaintext vectors
// exist only transiently in memory during scoring.
package embedding

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Fixed dimensionality per modality, set by the extraction models.
const (
	FaceDim  = 512
	VoiceDim = 192
	// DocDim is the document embedding: a face subspace followed by a text
	// subspace.
	DocDim     = FaceDim + DocTextDim
	DocTextDim = 128
)

// Vector is a fixed-length ordered sequence of 32-bit floats.
type Vector []float32

// Bytes serializes the vector as little-endian float32, matching the
// extractor's wire format.
func (v Vector) Bytes() []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// FromBytes deserializes a little-endian float32 vector.
func FromBytes(data []byte) (Vector, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding byte length %d is not a multiple of 4", len(data))
	}
	v := make(Vector, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}

// FaceSubspace returns the first FaceDim components of a document embedding,
// zero-padded on the right when the vector is shorter.
func (v Vector) FaceSubspace() Vector {
	out := make(Vector, FaceDim)
	copy(out, v)
	return out
}
