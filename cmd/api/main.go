package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"embedgate.io/internal/access"
	"embedgate.io/internal/catalog"
	"embedgate.io/internal/grants"
	"embedgate.io/internal/httpapi"
	"embedgate.io/internal/obs"
	"embedgate.io/internal/refresh"
	"embedgate.io/internal/refresh/remote"
	"embedgate.io/internal/store/pg"
	"embedgate.io/internal/stream"
)

var (
	version = "0.3.0"
	commit  = "none"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		catalogReader catalog.Reader
		grantsReader  grants.Reader
		probe         httpapi.ReadyProbe
		store         *pg.Store
	)
	if dsn := os.Getenv("EMBEDGATE_PG_DSN"); dsn != "" {
		var err error
		store, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		catalogReader = store
		grantsReader = store
		probe = httpapi.ReadyProbe{DB: store.DB()}
	} else {
		// No DSN configured: start with empty in-memory stores. Useful for
		// local development, not for production.
		catalogReader = catalog.NewMemoryStore()
		grantsReader = grants.NewMemoryStore()
	}

	resolver, err := access.NewResolver(catalogReader, grantsReader)
	if err != nil {
		log.Fatalf("new resolver: %v", err)
	}

	events := stream.New()

	var coalescer *refresh.Coalescer
	if baseURL := os.Getenv("EMBEDGATE_UPSTREAM_BASE_URL"); baseURL != "" {
		upstream, err := remote.NewClient(baseURL, os.Getenv("EMBEDGATE_UPSTREAM_TOKEN"))
		if err != nil {
			log.Fatalf("upstream client: %v", err)
		}
		opts := []refresh.Option{refresh.WithEventSink(events.Publish)}
		if raw := os.Getenv("EMBEDGATE_REFRESH_WINDOW_MS"); raw != "" {
			ms, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || ms <= 0 {
				log.Fatalf("invalid EMBEDGATE_REFRESH_WINDOW_MS: %q", raw)
			}
			opts = append(opts, refresh.WithWindow(time.Duration(ms)*time.Millisecond))
		}
		coalescer, err = refresh.NewCoalescer(upstream, opts...)
		if err != nil {
			log.Fatalf("new coalescer: %v", err)
		}
	}

	api := httpapi.New(probe, version, resolver, coalescer, events, os.Getenv("EMBEDGATE_API_KEY_HASH"))

	addr := os.Getenv("EMBEDGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting embedgate-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	obs.SetReady(true)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if coalescer != nil {
		coalescer.Close()
	}
	if store != nil {
		_ = store.Close()
	}
	log.Println("Stopped")
}
