package consumer

import (
	"testing"

	"roomclient/internal/constants"
)

func TestAdaptPreferredLayersSimpleConsumerIsNoop(t *testing.T) {
	c := &Consumer{Type: constants.ConsumerSimple}
	_, _, ok := AdaptPreferredLayers(c, 1920, 1080, 0.75)
	if ok {
		t.Fatal("expected no-op for a simple consumer")
	}
}

func TestAdaptPreferredLayersSmallViewportPicksLowestLayer(t *testing.T) {
	c := &Consumer{
		Type:               constants.ConsumerSimulcast,
		Width:              1280,
		Height:             720,
		ResolutionScalings: []float64{4, 2, 1},
		TemporalLayers:     3,
	}
	spatial, _, ok := AdaptPreferredLayers(c, 320, 180, 0.75)
	if !ok {
		t.Fatal("expected a layer change from the zero value")
	}
	if spatial != 0 {
		t.Fatalf("expected spatial layer 0, got %d", spatial)
	}
}

func TestAdaptPreferredLayersLargeViewportPicksHighestLayer(t *testing.T) {
	c := &Consumer{
		Type:               constants.ConsumerSimulcast,
		Width:              1280,
		Height:             720,
		ResolutionScalings: []float64{4, 2, 1},
		TemporalLayers:     3,
	}
	spatial, _, ok := AdaptPreferredLayers(c, 1920, 1080, 0.75)
	if !ok {
		t.Fatal("expected a layer change from the zero value")
	}
	if spatial != 2 {
		t.Fatalf("expected spatial layer 2, got %d", spatial)
	}
}

func TestAdaptPreferredLayersNoChangeReturnsFalse(t *testing.T) {
	c := &Consumer{
		Type:               constants.ConsumerSimulcast,
		Width:              1280,
		Height:             720,
		ResolutionScalings: []float64{4, 2, 1},
		TemporalLayers:     3,
	}
	AdaptPreferredLayers(c, 1920, 1080, 0.75)
	_, _, ok := AdaptPreferredLayers(c, 1920, 1080, 0.75)
	if ok {
		t.Fatal("expected no change on repeated call with the same viewport")
	}
}
