package core

import (
	"errors"
)

var (
	// ErrInvalidImage reports zero-area or malformed source pixel input.
	// Caller error, never retried.
	ErrInvalidImage = errors.New("invalid image")
	// ErrAtlasFull reports that no page could place the request. Recoverable:
	// the caller may release unused textures and retry.
	ErrAtlasFull = errors.New("atlas full")
	// ErrOversizedTexture reports a footprint larger than the maximum page
	// size. Recoverable only by reconfiguration.
	ErrOversizedTexture = errors.New("oversized texture")
	// ErrBackendFailure wraps failures of the GPU surface backend itself.
	// Generally fatal to the session.
	ErrBackendFailure = errors.New("surface backend failure")
	// ErrInvalidHandle reports a lookup or mutation through a handle that is
	// not live.
	ErrInvalidHandle = errors.New("invalid texture handle")
)
