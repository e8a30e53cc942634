// Package analysis measures the accuracy of the transcription integrators.
//
//   - [EstimateOrder]: least squares slope of log(error) against log(h)
//   - [DecayStudy]: global error of x' = -x under step refinement
//
// A method of order p shows a slope close to p:
//
//	res, _ := analysis.DecayStudy(integrator.RK4, 1, []int{4, 8, 16, 32}, 0)
//	fmt.Printf("%.2f\n", res.Order) // about 4
package analysis
