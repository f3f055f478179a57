package device

import (
	"testing"

	"roomclient/internal/constants"
)

func testCapabilities() RouterRTPCapabilities {
	return RouterRTPCapabilities{
		Codecs: []RTPCodec{
			{Kind: "audio", MimeType: "audio/opus", ClockRate: 48000, Channels: 2, PayloadType: 111},
			{Kind: "video", MimeType: "video/VP8", ClockRate: 90000, PayloadType: 96},
		},
	}
}

func TestDeviceLoadEnablesCanProduce(t *testing.T) {
	d := New()
	if d.Loaded() {
		t.Fatal("new device should not be loaded")
	}

	if err := d.Load(testCapabilities()); err != nil {
		t.Fatalf("load: %v", err)
	}

	if !d.Loaded() {
		t.Fatal("expected device to be loaded")
	}
	if !d.CanProduce(constants.KindAudio) {
		t.Fatal("expected audio production to be supported")
	}
	if !d.CanProduce(constants.KindVideo) {
		t.Fatal("expected video production to be supported")
	}
}

func TestDeviceLoadTwiceFails(t *testing.T) {
	d := New()
	if err := d.Load(testCapabilities()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := d.Load(testCapabilities()); err == nil {
		t.Fatal("expected second load to fail")
	}
}

func TestNewTransportRequiresLoadedDevice(t *testing.T) {
	d := New()
	_, err := NewTransport(d, DirectionSend, nil, Callbacks{}, nil)
	if err == nil {
		t.Fatal("expected error constructing transport on an unloaded device")
	}
}

func TestNewTransportSucceedsOnceLoaded(t *testing.T) {
	d := New()
	if err := d.Load(testCapabilities()); err != nil {
		t.Fatalf("load: %v", err)
	}

	tr, err := NewTransport(d, DirectionSend, nil, Callbacks{}, nil)
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	defer tr.Close()

	if tr.State() != ConnectionNew {
		t.Fatalf("expected initial state new, got %v", tr.State())
	}
}
