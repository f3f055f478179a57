package media

import (
	"context"
	"testing"

	"roomclient/internal/config"
	"roomclient/internal/roomerr"
)

func TestNullSourceReturnsMediaAcquisitionErrors(t *testing.T) {
	var src NullSource
	ctx := context.Background()

	if _, err := src.AcquireMic(ctx, config.AudioConstraints{}, ""); !roomerr.IsMediaAcquisition(err) {
		t.Fatalf("expected a MediaAcquisitionError from AcquireMic, got %v", err)
	}
	if _, err := src.AcquireWebcam(ctx, "", 640, 480, 30); !roomerr.IsMediaAcquisition(err) {
		t.Fatalf("expected a MediaAcquisitionError from AcquireWebcam, got %v", err)
	}
	if _, _, err := src.AcquireScreen(ctx, 1280, 720, 30); !roomerr.IsMediaAcquisition(err) {
		t.Fatalf("expected a MediaAcquisitionError from AcquireScreen, got %v", err)
	}
}
