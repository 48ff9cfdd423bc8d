package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tinycheckers/internal/game"
	"tinycheckers/internal/handlers"
	"tinycheckers/internal/logging"
	"tinycheckers/internal/templates"
	"tinycheckers/internal/transport"
)

const statusReconnecting = "Reconnecting..."

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvDuration(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
		log.Printf("ignoring %s=%q: not a duration", k, v)
	}
	return d
}

func main() {
	addr := flag.String("addr", getenv("CHECKERS_ADDR", ":8080"), "listen address")
	kind := flag.String("transport", getenv("CHECKERS_TRANSPORT", "ntfy"), "synchronization transport: ntfy or link")
	ntfyURL := flag.String("ntfy-url", getenv("CHECKERS_NTFY_URL", transport.DefaultServer), "ntfy-compatible server")
	prefix := flag.String("topic-prefix", getenv("CHECKERS_TOPIC_PREFIX", transport.DefaultTopicPrefix), "topic prefix for game ids")
	retry := flag.Duration("retry", getenvDuration("CHECKERS_RETRY", transport.DefaultRetryDelay), "delay before reconnecting a dropped stream")
	linkBase := flag.String("link-base", getenv("CHECKERS_LINK_BASE", ""), "base URL of shared game links (default http://localhost<addr>/)")
	debug := flag.Bool("debug", getenv("CHECKERS_DEBUG", "") != "", "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(versionString())
		return
	}
	logging.Setup(*debug)
	templates.SetCommit(commit)

	var session *game.Session
	switch strings.ToLower(*kind) {
	case "ntfy":
		m := transport.NewMessenger(*ntfyURL)
		m.TopicPrefix = *prefix
		m.RetryDelay = *retry
		m.OnError = func(gameID string, err error) {
			if session.GameID() == gameID {
				session.SetStatus(statusReconnecting)
			}
		}
		m.OnConnect = func(gameID string) {
			if session.GameID() == gameID {
				session.ClearStatus(statusReconnecting)
			}
		}
		session = game.NewSession(m)
	case "link":
		base := *linkBase
		if base == "" {
			base = "http://localhost" + *addr + "/"
		}
		session = game.NewSession(transport.NewLink(base))
	default:
		log.Fatalf("unknown transport %q (want ntfy or link)", *kind)
	}
	defer session.Reset()

	h := handlers.NewHandler(session, strings.ToLower(*kind))
	server := &http.Server{
		Addr:    *addr,
		Handler: h.Routes(),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
		close(serverErrCh)
	}()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	log.Printf("Checkers (%s, %s) listening on http://localhost%s …", *kind, versionString(), *addr)
	select {
	case <-sigCtx.Done():
		log.Printf("shutdown signal received: %v", sigCtx.Err())
	case err, ok := <-serverErrCh:
		if ok {
			log.Printf("server error: %v", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
}
