package consumer

import "roomclient/internal/constants"

// AdaptPreferredLayers computes the preferred spatial/temporal layer for a
// simulcast/SVC consumer given a viewport size, per spec.md §4.4. Simple
// consumers (a single encoding) are a no-op. Returns ok=false when no
// change from the consumer's current preference is needed.
func AdaptPreferredLayers(c *Consumer, viewportWidth, viewportHeight int, adaptiveScalingFactor float64) (spatial, temporal int32, ok bool) {
	if c.Type == constants.ConsumerSimple || len(c.ResolutionScalings) == 0 {
		return 0, 0, false
	}

	f := adaptiveScalingFactor
	if f < 0.5 {
		f = 0.5
	}
	if f > 1.0 {
		f = 1.0
	}

	newSpatial := int32(0)
	for i := len(c.ResolutionScalings) - 1; i >= 0; i-- {
		scale := c.ResolutionScalings[i]
		thresholdW := f * float64(c.Width) / scale
		thresholdH := f * float64(c.Height) / scale
		if float64(viewportWidth) >= thresholdW || float64(viewportHeight) >= thresholdH {
			newSpatial = int32(i)
			break
		}
	}

	newTemporal := int32(c.TemporalLayers - 1)
	if newSpatial == 0 && len(c.ResolutionScalings) > 0 {
		lowestScale := c.ResolutionScalings[0]
		lowestWidth := float64(c.Width) / lowestScale
		lowestHeight := float64(c.Height) / lowestScale

		if float64(viewportWidth) < lowestWidth/2 && float64(viewportHeight) < lowestHeight/2 {
			newTemporal--
			if float64(viewportWidth) < lowestWidth/4 && float64(viewportHeight) < lowestHeight/4 {
				newTemporal--
			}
		}
	}
	if newTemporal < 0 {
		newTemporal = 0
	}

	c.mu.Lock()
	curSpatial, curTemporal := c.preferredSpatialLayer, c.preferredTemporalLayer
	c.mu.Unlock()

	if newSpatial == curSpatial && newTemporal == curTemporal {
		return newSpatial, newTemporal, false
	}

	c.mu.Lock()
	c.preferredSpatialLayer = newSpatial
	c.preferredTemporalLayer = newTemporal
	c.mu.Unlock()

	return newSpatial, newTemporal, true
}
