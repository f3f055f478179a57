package history

import (
	"context"
	"fmt"
	"time"
)

// SetRecordingConsent upserts peerID's recording-consent flag for roomID.
func (s *Store) SetRecordingConsent(ctx context.Context, roomID, peerID string, consent bool) error {
	_, err := s.ExecContext(ctx,
		`INSERT INTO recording_consents (room_id, peer_id, consent, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(room_id, peer_id) DO UPDATE SET consent = excluded.consent, updated_at = excluded.updated_at`,
		roomID, peerID, consent, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upserting recording consent: %w", err)
	}
	return nil
}

// RecordingConsents returns roomID's full peerID→consent map.
func (s *Store) RecordingConsents(ctx context.Context, roomID string) (map[string]bool, error) {
	rows, err := s.QueryContext(ctx,
		`SELECT peer_id, consent FROM recording_consents WHERE room_id = ?`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recording consents: %w", err)
	}
	defer rows.Close()

	consents := make(map[string]bool)
	for rows.Next() {
		var peerID string
		var consent bool
		if err := rows.Scan(&peerID, &consent); err != nil {
			return nil, fmt.Errorf("scanning recording consent: %w", err)
		}
		consents[peerID] = consent
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recording consents: %w", err)
	}
	return consents, nil
}
