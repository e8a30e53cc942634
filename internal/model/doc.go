// Package model provides symbolic dynamical systems for transcription.
//
// Each model implements [System], returning its state derivative as an
// expression graph so it can be integrated by any
// [github.com/san-kum/ocptrans/internal/integrator.Method]:
//
//   - [Decay]: scalar exponential decay with a free rate
//   - [Pendulum]: torque driven pendulum with a free mass
//   - [FreeBody]: rigid body with translations and a quaternion rotation
//
// Models with rotational coordinates expose a [Skeleton] so the integrator
// can locate their quaternions.
//
//	sys, _ := model.NewRegistry().Get("freebody")
//	spec, params := model.Symbolic(sys, 1)
package model
