package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaytransfer/relay/server"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	addr := flag.String("addr", ":8080", "address to bind and listen on")
	maxSessions := flag.Int("max-sessions", 1000, "maximum number of concurrent rendezvous sessions")
	sessionTTL := flag.Duration("session-ttl", 10*time.Minute, "lifetime of a rendezvous session before the cleanup sweep removes it")
	relayRateLimit := flag.Int64("relay-rate-limit", 10*1024*1024, "aggregate relay forwarding rate limit, bytes/second")
	cleanupInterval := flag.Duration("cleanup-interval", 30*time.Second, "interval between expired-session sweeps")
	flag.Parse()

	metrics := server.NewMetrics(prometheus.DefaultRegisterer)
	srv := server.NewServer(*maxSessions, *sessionTTL, *relayRateLimit, metrics)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", srv.HealthHandler)
	mux.HandleFunc("GET /ws/{code}", srv.WebSocketHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	httpServer := &http.Server{Addr: *addr, Handler: mux}

	go srv.Run(*cleanupInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("relay-server: received interrupt, shutting down")
		srv.Stop()
		httpServer.Close()
	}()

	log.Printf("relay-server: listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "relay-server: %v\n", err)
		os.Exit(1)
	}
}
