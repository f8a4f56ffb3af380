// Package geom provides the 2D geometric primitives of the focal-plane
// measurement pipeline: nearest-neighbour point matching, algebraic circle
// fitting, and the warp between the flat focal-plane parametrization and
// the curved focal surface.
//
// All functions are pure: they neither mutate their inputs nor hold state.
// Gate rejections (a nearest neighbour being too far away) are the caller's
// concern; this package only reports geometry.
package geom
