package geom

import "errors"

// ErrDegenerate reports input geometry that does not constrain the
// requested fit: collinear or duplicate points for a circle, zero-variance
// point clouds.
var ErrDegenerate = errors.New("degenerate geometry")

// ErrInsufficientPoints reports too few points for the requested model.
var ErrInsufficientPoints = errors.New("insufficient points")
