package color

// Error is a signed per-channel residual accumulated while dithering.
// Addition is commutative and scalar multiplication distributes;
// clamping to [0,255] only happens when the residual is folded back
// into an RGBA via Apply.
type Error struct {
	R, G, B float64
}

// Add returns e + o.
func (e Error) Add(o Error) Error {
	return Error{R: e.R + o.R, G: e.G + o.G, B: e.B + o.B}
}

// Scale returns e scaled by k.
func (e Error) Scale(k float64) Error {
	return Error{R: e.R * k, G: e.G * k, B: e.B * k}
}

// Residual returns the per-channel difference actual - quantized, in
// the same signed-float representation carried by Error.
func Residual(actual, quantized RGBA) Error {
	return Error{
		R: float64(actual.R) - float64(quantized.R),
		G: float64(actual.G) - float64(quantized.G),
		B: float64(actual.B) - float64(quantized.B),
	}
}

// Apply adds e to c, clamping each resulting channel to [0,255].
// This is the only point at which a dither residual is re-materialized
// as a color.
func (e Error) Apply(c RGBA) RGBA {
	return RGBA{
		R: clampChannel(float64(c.R) + e.R),
		G: clampChannel(float64(c.G) + e.G),
		B: clampChannel(float64(c.B) + e.B),
		A: c.A,
	}
}

func clampChannel(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
