package history

import (
	"context"
	"fmt"
	"time"

	"roomclient/internal/store"
)

// AppendChatMessage records one chat message for roomID.
func (s *Store) AppendChatMessage(ctx context.Context, roomID string, m store.ChatMessage) error {
	ts := m.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	_, err := s.ExecContext(ctx,
		`INSERT INTO chat_messages (room_id, peer_id, text, created_at) VALUES (?, ?, ?, ?)`,
		roomID, m.PeerID, m.Text, ts,
	)
	if err != nil {
		return fmt.Errorf("inserting chat message: %w", err)
	}
	return nil
}

// ChatHistory returns roomID's chat history in chronological order.
func (s *Store) ChatHistory(ctx context.Context, roomID string) ([]store.ChatMessage, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT peer_id, text, created_at FROM chat_messages WHERE room_id = ? ORDER BY id ASC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying chat history: %w", err)
	}
	defer rows.Close()

	messages := make([]store.ChatMessage, 0)
	for rows.Next() {
		var m store.ChatMessage
		if err := rows.Scan(&m.PeerID, &m.Text, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chat history: %w", err)
	}
	return messages, nil
}

// ClearChatHistory deletes every chat message for roomID, mirroring
// `moderator:clearChat`.
func (s *Store) ClearChatHistory(ctx context.Context, roomID string) error {
	_, err := s.ExecContext(ctx, `DELETE FROM chat_messages WHERE room_id = ?`, roomID)
	if err != nil {
		return fmt.Errorf("clearing chat history: %w", err)
	}
	return nil
}
