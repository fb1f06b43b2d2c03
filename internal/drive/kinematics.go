package drive

import "math"

// Mix converts a (speed, direction) pair into per-side throttles for a
// differential drive. Negative direction steers left, positive right.
// When either raw side exceeds 1.0 in magnitude, both are scaled by the same
// factor so the larger lands exactly at ±1.0; this keeps the turn ratio
// intact instead of clipping one side.
func Mix(speed, direction float64) (left, right float64) {
	left = speed + direction/2
	right = speed - direction/2

	maxMagnitude := math.Max(math.Abs(left), math.Abs(right))
	if maxMagnitude > 1.0 {
		left /= maxMagnitude
		right /= maxMagnitude
	}
	return left, right
}

// Clamp bounds value to [-1,1]. Used as the final safety net after trim.
func Clamp(value float64) float64 {
	if value > 1.0 {
		return 1.0
	}
	if value < -1.0 {
		return -1.0
	}
	return value
}
