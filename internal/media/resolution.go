package media

import (
	"strconv"
	"strings"
)

// EncodingParams is the subset of an RTCRtpEncodingParameters entry the
// resolution-scaling algorithm needs.
type EncodingParams struct {
	ScaleResolutionDownBy *float64
	ScalabilityMode       string
}

// ResolutionScalings derives the scale-down factors used for adaptive layer
// selection (spec.md §4.3 "Resolution scaling algorithm").
func ResolutionScalings(encodings []EncodingParams) []float64 {
	if len(encodings) == 1 && encodings[0].ScalabilityMode != "" {
		if layers := spatialLayers(encodings[0].ScalabilityMode); layers > 0 {
			return descendingPowersOfTwo(layers)
		}
	}

	anyDefined := false
	for _, e := range encodings {
		if e.ScaleResolutionDownBy != nil {
			anyDefined = true
			break
		}
	}

	if !anyDefined {
		return descendingPowersOfTwo(len(encodings))
	}

	out := make([]float64, len(encodings))
	for i, e := range encodings {
		if e.ScaleResolutionDownBy == nil {
			out[i] = 1.0
			continue
		}
		v := *e.ScaleResolutionDownBy
		if v < 1.0 {
			v = 1.0
		}
		out[i] = v
	}
	return out
}

// descendingPowersOfTwo returns [2^(n-1), ..., 2^0] for n ≥ 1, or nil for
// n ≤ 0.
func descendingPowersOfTwo(n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		exp := n - 1 - i
		out[i] = float64(uint(1) << uint(exp))
	}
	return out
}

// spatialLayers parses the leading "SxTy" scalability mode prefix (e.g.
// "S3T3_KEY") and returns x, or 0 if it cannot be parsed.
func spatialLayers(mode string) int {
	idx := strings.IndexByte(mode, 'S')
	if idx < 0 {
		return 0
	}
	rest := mode[idx+1:]
	end := strings.IndexByte(rest, 'T')
	if end < 0 {
		end = len(rest)
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0
	}
	return n
}
