// Package extract defines the embedding-extraction port and its HTTP
// adapter. The inference sidecar owns the models; this package only moves
// bytes in and normalized vectors out.
package extract

import (
	"context"
	"errors"
)

// ErrNoFace is returned when the face model finds no usable face in the
// submitted image. Callers map it to an unprocessable-input error rather
// than an infrastructure failure.
var ErrNoFace = errors.New("no face detected in image")

// Embedder produces fixed-dimension embeddings from raw media bytes.
// Vectors arrive unit-normalized from the sidecar.
type Embedder interface {
	// Face extracts a 512-dim face embedding from an image.
	Face(ctx context.Context, image []byte) ([]float32, error)

	// Voice extracts a 192-dim speaker embedding from an audio sample.
	Voice(ctx context.Context, audio []byte) ([]float32, error)

	// Document extracts a 640-dim document embedding (512 face subspace +
	// 128 text features) plus the OCR'd text from a document image.
	Document(ctx context.Context, image []byte) ([]float32, string, error)
}
