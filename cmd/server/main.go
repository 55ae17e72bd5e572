package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "territory.ai/internal/persistence/log"
	"territory.ai/internal/persistence/snapshot"
	"territory.ai/internal/sim/catalogs"
	"territory.ai/internal/sim/game"
	"territory.ai/internal/sim/sessions"
	"territory.ai/internal/sim/tuning"
	"territory.ai/internal/transport/httpapi"
	"territory.ai/internal/transport/observer"
	"territory.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		serverID   = flag.String("server_id", "server_1", "server id (tags remote index rows)")
		configDir  = flag.String("configs", "./configs", "config directory")
		mapPath    = flag.String("map", "", "path to map.json (default: <configs>/map.json)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable indexing (commands + catalog + snapshot metadata)")
		noCmdLog   = flag.Bool("disable_command_log", false, "disable the JSONL command log")
		secure     = flag.Bool("secure_cookie", false, "mark the session cookie Secure (behind TLS)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	mp := strings.TrimSpace(*mapPath)
	if mp == "" {
		mp = filepath.Join(*configDir, "map.json")
	}
	cat, err := catalogs.LoadMap(mp)
	if err != nil {
		logger.Fatalf("load map: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	_ = os.MkdirAll(*dataDir, 0o755)

	// Optional: read-model index backend (never consulted by the game itself).
	idx, err := openRuntimeIndex(*dataDir, *serverID, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalog(cat, tune); err != nil {
			logger.Printf("index backend: upsert catalog: %v", err)
		}
	}

	// Optional: off-site copy of finished snapshots and command logs.
	mirror, err := openMirror(*dataDir, logger)
	if err != nil {
		logger.Fatalf("r2 mirror: %v", err)
	}
	defer mirror.Close()

	counts := newCommandCounter()
	recorders := persistlog.Tee{counts}
	if !*noCmdLog {
		cmdLog := persistlog.NewCommandLogger(*dataDir)
		cmdLog.OnFileClosed(mirror.Enqueue)
		defer cmdLog.Close()
		recorders = append(recorders, cmdLog)
	}
	if idx != nil {
		recorders = append(recorders, idx)
	}

	mgr := sessions.NewManager(sessions.Options{
		Catalog:       cat,
		Game:          game.Config{Bands: tune.Threat.Bands(), BattleSlots: tune.BattleSlots},
		MaxSessions:   tune.Sessions.Max,
		IdleTTL:       time.Duration(tune.Sessions.IdleTTLSec) * time.Second,
		Recorder:      recorders,
		SnapshotDir:   filepath.Join(*dataDir, "sessions"),
		SnapshotEvery: tune.SnapshotEveryCommands,
		OnSnapshot: func(path string, snap snapshot.SnapshotV1) {
			if idx != nil {
				idx.RecordSnapshot(path, snap)
			}
			mirror.Enqueue(path)
		},
		Logger: logger,
	})
	defer mgr.Close()

	ctx, cancel := signalContext()
	defer cancel()

	go mgr.Run(ctx, time.Minute)

	api := httpapi.NewServer(mgr, httpapi.Options{
		CommandsPerSec: tune.RateLimits.CommandsPerSec,
		Burst:          tune.RateLimits.Burst,
		SecureCookie:   *secure,
	}, logger)
	go func() {
		t := time.NewTicker(10 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				api.PruneLimiters(now.Add(-10 * time.Minute))
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(mgr, counts, idx, mirror))
	api.Register(mux)
	mux.HandleFunc("/v1/ws", ws.NewServer(api.Session, ws.Options{
		CommandsPerSec: tune.RateLimits.CommandsPerSec,
		Burst:          tune.RateLimits.Burst,
	}, logger).Handler())

	enableAdminHTTP := envBool("TSIM_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("TSIM_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoints.
		admin := &adminAPI{sessions: mgr, cat: cat, idx: idx, counts: counts}
		admin.register(mux)

		obsSrv := observer.NewServer(mgr, cat, logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else {
		logger.Printf("admin endpoints disabled (TSIM_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (TSIM_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s map=%s nodes=%d", *addr, cat.Digest[:12], len(cat.Bases))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
