package jetstream

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/HarshModi2005/realityspiral/pkg/logger"
)

// EmbeddedServer runs an in-process NATS server with JetStream enabled, used
// when no external NATS URL is configured.
type EmbeddedServer struct {
	server *server.Server
}

// StartEmbedded listens on a random loopback port and stores stream data in
// storeDir.
func StartEmbedded(storeDir string) (*EmbeddedServer, error) {
	opts := &server.Options{
		Host:       "127.0.0.1",
		Port:       server.RANDOM_PORT,
		NoLog:      true,
		NoSigs:     true,
		MaxPayload: 4 * 1024 * 1024,
		JetStream:  true,
		StoreDir:   storeDir,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded NATS server: %w", err)
	}
	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start within timeout")
	}

	logger.InfoCF("memory", "Embedded NATS server started", map[string]any{
		"url":       ns.ClientURL(),
		"store_dir": storeDir,
	})
	return &EmbeddedServer{server: ns}, nil
}

func (e *EmbeddedServer) ClientURL() string {
	return e.server.ClientURL()
}

func (e *EmbeddedServer) Shutdown() {
	if e.server != nil {
		e.server.Shutdown()
		e.server.WaitForShutdown()
	}
}
