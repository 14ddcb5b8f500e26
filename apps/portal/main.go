package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gramsetu/scheme-portal/pkg/db"
	"github.com/gramsetu/scheme-portal/pkg/gateway"
	"github.com/gramsetu/scheme-portal/pkg/messaging"
	"github.com/gramsetu/scheme-portal/pkg/presence"
	"github.com/gramsetu/scheme-portal/pkg/snowflake"
	"github.com/gramsetu/scheme-portal/pkg/store"
	"github.com/gramsetu/scheme-portal/pkg/typing"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// Optional .env for local development; real deployments set env vars.
	_ = godotenv.Load()

	addr := envOr("PORTAL_ADDR", ":8080")
	scyllaHosts := strings.Split(envOr("SCYLLA_HOSTS", "localhost:9042"), ",")
	keyspace := envOr("SCYLLA_KEYSPACE", "portal")
	redisAddr := envOr("REDIS_ADDR", "localhost:6379")
	kafkaBrokers := strings.Split(envOr("KAFKA_BROKERS", "localhost:19092"), ",")
	kafkaTopic := envOr("KAFKA_PROJECT_TOPIC", "project-events")

	nodeID, err := strconv.ParseInt(envOr("PORTAL_NODE_ID", "1"), 10, 64)
	if err != nil {
		log.Fatalf("invalid PORTAL_NODE_ID: %v", err)
	}
	ids, err := snowflake.NewNode(nodeID)
	if err != nil {
		log.Fatalf("failed to initialize id generator: %v", err)
	}

	var st store.Store
	var dir store.Directory
	if envOr("PORTAL_STORE", "scylla") == "memory" {
		// Development mode: no database required.
		log.Println("Using in-memory store (PORTAL_STORE=memory)")
		mem := store.NewMemory()
		memDir := store.NewMemoryDirectory()
		seedDirectory(memDir)
		st, dir = mem, memDir
	} else {
		session, err := db.NewSession(scyllaHosts, keyspace)
		if err != nil {
			log.Fatalf("Failed to connect to ScyllaDB: %v", err)
		}
		defer session.Close()
		st = store.NewScylla(session, ids)
		dir = store.NewScyllaDirectory(session)
	}

	mirror := presence.NewRedisMirror(redisAddr)
	defer mirror.Close()
	registry := presence.NewRegistry(mirror)

	typingCoord := typing.NewCoordinator(registry, 0)
	defer typingCoord.Close()

	hub := gateway.NewHub(registry, typingCoord)
	orch := messaging.NewOrchestrator(st, dir, registry, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runNoticeConsumer(ctx, kafkaBrokers, kafkaTopic, orch)

	mux := http.NewServeMux()
	mux.Handle("/login", CORSMiddleware(http.HandlerFunc(LoginHandler)))
	mux.Handle("/conversations", CORSMiddleware(AuthMiddleware(ConversationsHandler(orch))))
	mux.Handle("/conversations/initiate", CORSMiddleware(AuthMiddleware(InitiateHandler(orch))))
	mux.Handle("/conversations/read", CORSMiddleware(AuthMiddleware(ReadHandler(orch))))
	mux.Handle("/history", CORSMiddleware(AuthMiddleware(HistoryHandler(orch))))
	mux.Handle("/messages", CORSMiddleware(AuthMiddleware(SendHandler(orch))))
	mux.Handle("/unread-count", CORSMiddleware(AuthMiddleware(UnreadCountHandler(orch))))
	mux.Handle("/presence/", CORSMiddleware(AuthMiddleware(PresenceHandler(registry))))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		gateway.ServeWS(hub, w, r)
	})

	log.Printf("Portal messaging service starting on %s...", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

// seedDirectory loads a small fixture set for memory mode so the demo client
// works out of the box.
func seedDirectory(dir *store.MemoryDirectory) {
	for _, u := range demoUsers() {
		dir.AddIdentity(u)
	}
	for _, p := range demoProjects() {
		dir.AddProject(p)
	}
}
