// Command bitmeshd runs a mesh chat node over an in-process loopback
// transport, with the HTTP control API attached to the first node. Real
// deployments swap the loopback for a BLE driver implementing
// transport.Driver; the protocol engine is identical.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitmesh/bitmesh-node/pkg/api"
	"github.com/bitmesh/bitmesh-node/pkg/mesh"
	"github.com/bitmesh/bitmesh-node/pkg/storage"
	"github.com/bitmesh/bitmesh-node/pkg/transport"
)

var (
	peerID     = flag.String("id", "", "8-character peer id (random if empty)")
	nickname   = flag.String("nick", "", "Nickname to announce (defaults to the config nickname, then the peer id)")
	configPath = flag.String("config", "", "Path to YAML config file")
	apiPort    = flag.Int("api-port", 0, "HTTP control API port (overrides config)")
	queuePath  = flag.String("queue", "", "Store-and-forward database path (overrides config)")
	demoPeers  = flag.Int("demo-peers", 2, "Extra loopback peers to run alongside this node")
)

func main() {
	flag.Parse()

	printBanner()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *apiPort != 0 {
		cfg.APIPort = *apiPort
	}
	if *queuePath != "" {
		cfg.QueuePath = *queuePath
	}

	id := *peerID
	if id == "" {
		id = randomPeerID()
	}
	nick := *nickname
	if nick == "" {
		nick = cfg.Nickname
	}

	lb := transport.NewLoopbackMesh()

	node := mesh.New(lb.Attach(id), cfg.meshConfig())
	if err := node.Init(); err != nil {
		log.Fatalf("Failed to init node: %v", err)
	}

	if cfg.QueuePath != "" {
		queue, err := storage.NewQueue(cfg.QueuePath, 0, 0)
		if err != nil {
			log.Fatalf("Failed to open message queue: %v", err)
		}
		defer queue.Close()
		if err := node.AttachMessageQueue(queue); err != nil {
			log.Fatalf("Failed to attach message queue: %v", err)
		}
		log.Printf("📬 Message queue at %s", cfg.QueuePath)
	}

	if err := node.Start(id, nick); err != nil {
		log.Fatalf("Failed to start node: %v", err)
	}
	defer node.Stop()
	log.Printf("✓ Node %s (%s) running", id, node.Nickname())

	// Companion peers make the loopback mesh observable end to end.
	for i := 0; i < *demoPeers; i++ {
		companionID := randomPeerID()
		companion := mesh.New(lb.Attach(companionID), cfg.meshConfig())
		if err := companion.Init(); err != nil {
			log.Fatalf("Failed to init companion: %v", err)
		}
		if err := companion.Start(companionID, fmt.Sprintf("peer-%d", i+1)); err != nil {
			log.Fatalf("Failed to start companion: %v", err)
		}
		defer companion.Stop()
		lb.Connect(id, companionID)
		go drainEvents(companion)
		log.Printf("✓ Companion peer %s connected", companionID)
	}

	go printIncoming(node)

	server := api.NewServer(node, &api.Config{
		Port:         cfg.APIPort,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})
	go func() {
		log.Printf("✓ Control API listening on :%d", cfg.APIPort)
		if err := server.Start(); err != nil {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	waitForShutdown(server)
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════════╗")
	fmt.Println("║            bitmesh node daemon v1.0               ║")
	fmt.Println("║      BLE mesh chat over encrypted TTL flood       ║")
	fmt.Println("╚═══════════════════════════════════════════════════╝")
	fmt.Println()
}

func printIncoming(node *mesh.Node) {
	for msg := range node.Messages() {
		scope := "broadcast"
		if msg.Private {
			scope = "private"
		} else if msg.Channel != "" {
			scope = msg.Channel
		}
		log.Printf("💬 [%s] %s: %s", scope, msg.SenderNickname, msg.Content)
	}
}

func drainEvents(node *mesh.Node) {
	for {
		select {
		case <-node.Messages():
		case <-node.PeerEvents():
		case <-node.DeliveryEvents():
		case <-node.ChannelEvents():
		}
	}
}

func randomPeerID() string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		log.Fatalf("Failed to generate peer id: %v", err)
	}
	for i := range buf {
		buf[i] = alphabet[int(buf[i])%len(alphabet)]
	}
	return string(buf[:])
}

func waitForShutdown(server *api.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("API shutdown: %v", err)
	}
}
