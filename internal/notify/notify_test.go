package notify

import "testing"

func TestNotifySuppressesSoundWhenDisabled(t *testing.T) {
	n := New(false)
	var got Notification
	n.On(func(e Notification) { got = e })

	n.Warning("moderator muted your audio")
	if got.Sound {
		t.Fatal("expected sound to be suppressed when notificationSounds is off")
	}
	if got.Category != CategoryWarning {
		t.Fatalf("expected warning category, got %v", got.Category)
	}
}

func TestNotifyPlaysSoundWhenEnabled(t *testing.T) {
	n := New(true)
	var got Notification
	n.On(func(e Notification) { got = e })

	n.Moderation("you have been kicked")
	if !got.Sound {
		t.Fatal("expected sound when notificationSounds is on and withSound requested")
	}
}

func TestInfoNeverPlaysSound(t *testing.T) {
	n := New(true)
	var got Notification
	n.On(func(e Notification) { got = e })

	n.Info("peer joined")
	if got.Sound {
		t.Fatal("expected Info to never request sound")
	}
}
