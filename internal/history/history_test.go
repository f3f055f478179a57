package history

import (
	"context"
	"testing"

	"roomclient/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir() + "/history.db")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestChatHistoryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AppendChatMessage(ctx, "room-1", store.ChatMessage{PeerID: "p1", Text: "hi", Timestamp: 10}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendChatMessage(ctx, "room-1", store.ChatMessage{PeerID: "p2", Text: "hey", Timestamp: 20}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendChatMessage(ctx, "room-2", store.ChatMessage{PeerID: "p3", Text: "other room", Timestamp: 5}); err != nil {
		t.Fatalf("append: %v", err)
	}

	history, err := s.ChatHistory(ctx, "room-1")
	if err != nil {
		t.Fatalf("chat history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages for room-1, got %d", len(history))
	}
	if history[0].Text != "hi" || history[1].Text != "hey" {
		t.Fatalf("unexpected ordering: %+v", history)
	}

	if err := s.ClearChatHistory(ctx, "room-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	history, err = s.ChatHistory(ctx, "room-1")
	if err != nil {
		t.Fatalf("chat history after clear: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected chat history cleared, got %d", len(history))
	}
}

func TestFileHistoryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AppendFile(ctx, "room-1", store.FileEntry{PeerID: "p1", Name: "a.png", URL: "blob://a", Timestamp: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}

	files, err := s.FileHistory(ctx, "room-1")
	if err != nil {
		t.Fatalf("file history: %v", err)
	}
	if len(files) != 1 || files[0].Name != "a.png" {
		t.Fatalf("unexpected file history: %+v", files)
	}
}

func TestRecordingConsentUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetRecordingConsent(ctx, "room-1", "p1", true); err != nil {
		t.Fatalf("set consent: %v", err)
	}
	if err := s.SetRecordingConsent(ctx, "room-1", "p1", false); err != nil {
		t.Fatalf("update consent: %v", err)
	}

	consents, err := s.RecordingConsents(ctx, "room-1")
	if err != nil {
		t.Fatalf("consents: %v", err)
	}
	if consents["p1"] != false {
		t.Fatalf("expected updated consent false, got %v", consents["p1"])
	}
}
