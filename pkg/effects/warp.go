package effects

import (
	"fmt"
	"math"
	"strings"

	"github.com/matzehuels/sceneweaver/pkg/spec"
)

// warpSegments is the number of linear pieces approximating the easing curve.
const warpSegments = 16

// WarpExpr returns an ffmpeg setpts expression retiming a clip of length
// clipDuration to a.Duration: at output time u the frame shown is the one
// from clipDuration*f(u/a.Duration), where f is the easing curve. The
// expression maps input time T to output time.
func WarpExpr(a spec.AccelDecel, clipDuration float64) string {
	if a.Duration <= 0 || clipDuration <= 0 {
		return "T"
	}
	src, out := warpPoints(a, clipDuration)
	if isIdentity(src, out) {
		return "T"
	}

	var b strings.Builder
	for i := 1; i <= warpSegments; i++ {
		slope := (out[i] - out[i-1]) / (src[i] - src[i-1])
		fmt.Fprintf(&b, "if(lt(T,%s),%s+(T-%s)*%s,", num(src[i]), num(out[i-1]), num(src[i-1]), num(slope))
	}
	// past the end of the input the stream has no frames left to place
	fmt.Fprintf(&b, "%s+(T-%s)*%s", num(out[warpSegments]), num(src[warpSegments]), num(a.Duration/clipDuration))
	b.WriteString(strings.Repeat(")", warpSegments))
	return b.String()
}

// warpPoints samples the inverse of the easing curve: input time src[i] is
// shown at output time out[i].
func warpPoints(a spec.AccelDecel, clipDuration float64) (src, out []float64) {
	src = make([]float64, warpSegments+1)
	out = make([]float64, warpSegments+1)
	for i := range src {
		s := float64(i) / warpSegments
		src[i] = s * clipDuration
		out[i] = Inverse(a.TransformProgress, s) * a.Duration
	}
	return src, out
}

func isIdentity(src, out []float64) bool {
	for i := range src {
		if math.Abs(src[i]-out[i]) > 1e-6 {
			return false
		}
	}
	return true
}

// Inverse finds x in [0,1] with f(x) = y for a non-decreasing f with f(0)=0
// and f(1)=1, by bisection.
func Inverse(f func(float64) float64, y float64) float64 {
	lo, hi := 0.0, 1.0
	for range 60 {
		mid := (lo + hi) / 2
		if f(mid) < y {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}
