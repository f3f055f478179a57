package history

import (
	"context"
	"fmt"
	"time"

	"roomclient/internal/store"
)

// AppendFile records one shared-file entry for roomID.
func (s *Store) AppendFile(ctx context.Context, roomID string, f store.FileEntry) error {
	ts := f.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	_, err := s.ExecContext(ctx,
		`INSERT INTO file_history (room_id, peer_id, name, url, created_at) VALUES (?, ?, ?, ?, ?)`,
		roomID, f.PeerID, f.Name, f.URL, ts,
	)
	if err != nil {
		return fmt.Errorf("inserting file history entry: %w", err)
	}
	return nil
}

// FileHistory returns roomID's shared-file history in chronological order.
func (s *Store) FileHistory(ctx context.Context, roomID string) ([]store.FileEntry, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT peer_id, name, url, created_at FROM file_history WHERE room_id = ? ORDER BY id ASC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying file history: %w", err)
	}
	defer rows.Close()

	files := make([]store.FileEntry, 0)
	for rows.Next() {
		var f store.FileEntry
		if err := rows.Scan(&f.PeerID, &f.Name, &f.URL, &f.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning file history entry: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating file history: %w", err)
	}
	return files, nil
}
