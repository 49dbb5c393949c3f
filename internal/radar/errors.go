// SPDX-License-Identifier: MIT
package radar

import "errors"

// Error kinds shared by every processing stage. Detail is attached by wrapping
// with fmt.Errorf("%w: ..."), so callers match with errors.Is.
var (
	ErrShapeMismatch          = errors.New("shape mismatch")
	ErrInvalidStackFactor     = errors.New("invalid stack factor")
	ErrInvalidChirpParameters = errors.New("invalid chirp parameters")
	ErrReplicaLengthMismatch  = errors.New("replica length mismatch")
	ErrEmptyPipeline          = errors.New("empty pipeline")
	ErrStageTypeMismatch      = errors.New("stage type mismatch")
	ErrCancelled              = errors.New("cancelled")
)
