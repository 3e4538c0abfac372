package embedding

import (
	"context"
	"errors"
)

// ErrNoFaceDetected signals that the embedding server found no face in the
// image. In strict mode callers surface it to the user; in lenient mode it
// is a skip signal for batch processing, never a reason to abort.
var ErrNoFaceDetected = errors.New("no face detected in image")

// Provider computes a fixed-length feature vector for a face image.
//
// strict=true: detection failure is an error for the caller to handle.
// strict=false: the server is asked for a best-effort embedding; a result of
// ErrNoFaceDetected means the image should be skipped.
type Provider interface {
	Embed(ctx context.Context, imageData []byte, strict bool) ([]float32, error)
}
