package roomerr

import (
	"errors"
	"testing"
)

func TestMediaAcquisitionErrorIdentity(t *testing.T) {
	err := NewMediaAcquisitionError("updateMic", "mic", errors.New("permission denied"))
	if !IsMediaAcquisition(err) {
		t.Fatalf("expected IsMediaAcquisition to match, got %v", err)
	}
	if IsDeviceCapability(err) || IsInvalidArgument(err) {
		t.Fatalf("unexpected kind match for %v", err)
	}
	var me *MediaError
	if !errors.As(err, &me) {
		t.Fatalf("expected errors.As to unwrap to *MediaError")
	}
	if me.Kind != ErrKindFatal || me.Op != "updateMic" || me.Device != "mic" {
		t.Fatalf("unexpected fields: %+v", me)
	}
}

func TestDeviceCapabilityError(t *testing.T) {
	err := NewDeviceCapabilityError("updateWebcam", "webcam")
	if !IsDeviceCapability(err) {
		t.Fatalf("expected IsDeviceCapability to match, got %v", err)
	}
}

func TestInvalidArgumentError(t *testing.T) {
	err := NewInvalidArgumentError("updateMic", "changing device requires restart")
	if !IsInvalidArgument(err) {
		t.Fatalf("expected IsInvalidArgument to match, got %v", err)
	}
}
