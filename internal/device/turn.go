package device

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"time"

	"roomclient/internal/config"
)

// ICEServerInfo is the wire shape of a single RTCIceServer entry.
type ICEServerInfo struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// GenerateTURNCredentials produces ephemeral TURN credentials using the TURN
// REST API (HMAC-SHA1) scheme compatible with coturn's use-auth-secret.
func GenerateTURNCredentials(secret, peerID string, ttl time.Duration) (username, credential string) {
	expiry := time.Now().Add(ttl).Unix()
	username = fmt.Sprintf("%d:%s", expiry, peerID)

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(username))
	credential = base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return
}

// BuildICEServers produces the ICE server list a Transport is configured
// with. If TURN is configured (Host non-empty) it returns a STUN and a TURN
// entry; otherwise only STUN-less direct connectivity is attempted.
func BuildICEServers(cfg config.TURNConfig, peerID string) []ICEServerInfo {
	if cfg.Host == "" {
		return nil
	}

	stunURL := fmt.Sprintf("stun:%s:%d", cfg.Host, cfg.Port)
	turnURL := fmt.Sprintf("turn:%s:%d", cfg.Host, cfg.Port)

	username, credential := GenerateTURNCredentials(cfg.Secret, peerID, cfg.TTL)

	return []ICEServerInfo{
		{URLs: []string{stunURL}},
		{URLs: []string{turnURL}, Username: username, Credential: credential},
	}
}
