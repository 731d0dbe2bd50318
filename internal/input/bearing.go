package input

import "math"

// NormalizeDegrees maps any angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// Bearing returns the direction from (fromX, fromY) to (toX, toY) in screen
// coordinates (y grows downward), in degrees [0, 360). 0 points right and 90
// points down, matching the server's rotation convention.
func Bearing(fromX, fromY, toX, toY float64) float64 {
	dx := toX - fromX
	dy := toY - fromY
	if dx == 0 && dy == 0 {
		return 0
	}
	return NormalizeDegrees(math.Atan2(dy, dx) * 180 / math.Pi)
}
