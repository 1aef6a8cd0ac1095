// assay.report serves the dataset comparison API: upload a pair of
// geochemical survey CSVs, align them on rounded coordinates, and compare
// them cell by cell on a shared grid.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tellurium-labs/assay.report/internal/api"
	"github.com/tellurium-labs/assay.report/internal/config"
	"github.com/tellurium-labs/assay.report/internal/session"
	"github.com/tellurium-labs/assay.report/internal/timeutil"
	"github.com/tellurium-labs/assay.report/internal/version"
)

var (
	listen      = flag.String("listen", "", "Listen address (overrides config)")
	dbPath      = flag.String("db", "", "Session database path (overrides config)")
	configPath  = flag.String("config", "", "Path to JSON config file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// purgeInterval is how often expired sessions are swept from the store.
const purgeInterval = 15 * time.Minute

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *listen != "" {
		cfg.Listen = listen
	}
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}

	store, err := session.NewStore(*cfg.DBPath, cfg.SessionTTLDuration(), timeutil.RealClock{})
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}
	defer store.Close()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// sweep expired sessions in the background
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := store.Purge()
				if err != nil {
					log.Printf("session purge failed: %v", err)
				} else if n > 0 {
					log.Printf("purged %d expired sessions", n)
				}
			case <-ctx.Done():
				log.Print("purge routine terminated")
				return
			}
		}
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(store, cfg).ServeMux()
		server := &http.Server{
			Addr:    *cfg.Listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("%s listening on %s", version.String(), *cfg.Listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
}
