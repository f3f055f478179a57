// Command roomhost runs one Room Client process: it joins a single room
// against a signaling/SFU endpoint, persists chat/file/consent history
// locally, and exposes an admin/debug HTTP surface, mirroring the
// teacher's cmd/server bootstrap shape (config → resources → servers →
// signal-driven graceful shutdown).
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/logging"

	"roomclient/internal/config"
	"roomclient/internal/devices"
	"roomclient/internal/history"
	"roomclient/internal/joinauth"
	"roomclient/internal/media"
	"roomclient/internal/room"
	"roomclient/internal/signaling"
	"roomclient/internal/webapi"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	peerID := flag.String("peer-id", "", "this process's peer id (overrides ROOMCLIENT_PEER_ID)")
	roomID := flag.String("room-id", "", "room id to join (overrides ROOMCLIENT_ROOM_ID)")
	displayName := flag.String("display-name", "roomhost", "display name to join with")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	loggerFactory := logging.NewDefaultLoggerFactory()
	logger := loggerFactory.NewLogger("roomhost")

	from := *peerID
	if from == "" {
		from = os.Getenv("ROOMCLIENT_PEER_ID")
	}
	if from == "" {
		log.Fatal("a peer id is required: pass -peer-id or set ROOMCLIENT_PEER_ID")
	}

	rid := *roomID
	if rid == "" {
		rid = os.Getenv("ROOMCLIENT_ROOM_ID")
	}

	if cfg.Auth.JoinTokenSecret != "" {
		verifier := joinauth.New(cfg.Auth.JoinTokenSecret)
		token, err := verifier.Mint(from, rid, time.Hour)
		if err != nil {
			log.Fatalf("failed to mint join token: %v", err)
		}
		logger.Infof("minted join token for peer %s (expires in 1h): %s", from, token)
	}

	historyStore, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Fatalf("failed to open history store: %v", err)
	}
	defer historyStore.Close()
	logger.Infof("history store opened at %s", cfg.History.Path)

	deviceWatcher := devices.NewWatcher(devices.NullLister{}, 3*time.Second, loggerFactory.NewLogger("devices"))
	deviceWatcher.OnChange(func(list []devices.Device) {
		logger.Infof("device set changed: %d device(s) now enumerated", len(list))
	})
	_ = deviceWatcher.Start(context.Background())

	dial := signaling.DialWebsocket(cfg.SFU.SignalingURL, nil, loggerFactory.NewLogger("signaling"))

	client := room.New(cfg, dial, media.NullSource{}, loggerFactory.NewLogger("room"))
	client.SetHistoryStore(historyStore)

	joinCtx, joinCancel := context.WithTimeout(context.Background(), cfg.Room.RequestTimeout)
	err = client.Join(joinCtx, room.JoinOptions{
		DisplayName: *displayName,
		From:        from,
		RoomID:      rid,
		JoinAudio:   false,
		JoinVideo:   false,
	})
	joinCancel()
	if err != nil {
		log.Fatalf("failed to join room: %v", err)
	}
	logger.Infof("joined room %q as peer %q", rid, from)

	adminServer, err := webapi.NewServer(client, cfg.Server.TrustedProxyCIDRs, cfg.Server.RateLimitRequests, cfg.Server.RateLimitWindow, loggerFactory.NewLogger("webapi"))
	if err != nil {
		log.Fatalf("failed to create admin server: %v", err)
	}

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:    addr,
		Handler: adminServer,
	}

	go func() {
		logger.Infof("admin server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("admin server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down...")

	deviceWatcher.Stop()

	if err := client.Close(); err != nil {
		logger.Warnf("room client close: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warnf("admin server shutdown error: %v", err)
	}

	logger.Info("roomhost stopped")
}
