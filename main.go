package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"video-overlay/internal/blobstore"
	"video-overlay/internal/codec"
	"video-overlay/internal/codec/wasm"
	"video-overlay/internal/handlers"
	"video-overlay/internal/logging"
	"video-overlay/internal/metrics"
	"video-overlay/internal/middleware"
	"video-overlay/internal/overlay"
	"video-overlay/internal/startup"
	"video-overlay/internal/transcoder"
	"video-overlay/web"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	defer logging.Sync()

	metrics.InitializeMetrics()

	// Bind before the runtime loads so same-origin asset fetches can connect.
	ln, err := net.Listen("tcp", config.Addr())
	if err != nil {
		startup.LogFatal("Failed to listen on %s: %v", config.Addr(), err)
	}

	// Codec runtime
	rt := newRuntime(config)
	src := newAssetSource(config, ln.Addr().String())
	startup.LogCodecInit(config, assetNames(rt))

	loader := codec.NewLoader(rt, src)
	store := blobstore.New(blobstore.DefaultPrefix)
	session := overlay.New(loader, store)
	unsubscribe := loader.Subscribe(session.SetRuntimeStatus)

	collector := metrics.NewCollector(metrics.StatsFunc(func() metrics.Stats {
		stats := metrics.Stats{
			LiveResults:     store.Len(),
			LiveResultBytes: store.Bytes(),
			ScratchBytes:    loader.ScratchBytes(),
		}
		if f := session.State().File; f != nil {
			stats.SelectedFileBytes = f.Size
		}
		return stats
	}), 30*time.Second)
	collector.Start()

	// Runtime endpoints always read the local directory; the loader may be
	// fetching from those same endpoints.
	h := handlers.New(session, loader, codec.NewDirSource(config.AssetsDir), web.FS, config)
	router := setupRouter(h, store)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)
	handler = middleware.CrossOriginIsolation(config.COEPMode)(handler)

	srv := &http.Server{
		Addr:              config.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads, result downloads and the event stream are long-lived
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsAddr())
	}

	srv.RegisterOnShutdown(h.Shutdown)

	loadCtx, cancelLoad := context.WithCancel(context.Background())
	go func() {
		loadStart := time.Now()
		err := loader.Initialize(loadCtx)
		startup.LogRuntimeReady(time.Since(loadStart), err)
	}()

	done := make(chan struct{})
	go handleShutdown(srv, metricsSrv, done, func(ctx context.Context) {
		startup.LogShutdownStep("Closing session")
		unsubscribe()
		session.Close()
		store.Close()
		startup.LogShutdownStepComplete("Session closed")

		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")

		startup.LogShutdownStep("Closing codec runtime")
		cancelLoad()
		if err := loader.Close(ctx); err != nil {
			logging.Warn("Codec runtime close error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Codec runtime closed")
		}
	})

	startup.LogServerStarted(startup.ServerConfig{
		Addr:            config.Addr(),
		MetricsAddr:     config.MetricsAddr(),
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func newRuntime(config *startup.Config) codec.Runtime {
	if config.Engine == startup.EngineNative {
		return transcoder.New(config.FFmpegPath)
	}
	return wasm.New()
}

func newAssetSource(config *startup.Config, listenAddr string) codec.AssetSource {
	if base := config.AssetsBaseURL(listenAddr); base != "" {
		return codec.NewHTTPSource(base)
	}
	return codec.NewDirSource(config.AssetsDir)
}

func assetNames(rt codec.Runtime) []string {
	var names []string
	for _, spec := range rt.Assets() {
		names = append(names, spec.Name)
	}
	return names
}

func setupRouter(h *handlers.Handlers, store *blobstore.Store) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Session API
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", h.GetState).Methods("GET")
	api.HandleFunc("/events", h.Events).Methods("GET")
	api.HandleFunc("/file", h.SelectFile).Methods("POST")
	api.HandleFunc("/caption", h.SetCaption).Methods("PUT")
	api.HandleFunc("/overlay", h.StartOverlay).Methods("POST")

	// Session-scoped result addresses
	r.Handle(blobstore.DefaultPrefix+"{id}", store).Methods("GET", "HEAD")

	// Codec runtime assets
	r.HandleFunc(`/{asset:ffmpeg-core\.(?:wasm|json)}`, h.RuntimeAsset).Methods("GET", "HEAD")

	// Page and static files
	r.PathPrefix("/").Handler(h.Page()).Methods("GET", "HEAD")

	return r
}

func startMetricsServer(addr string) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

func handleShutdown(srv, metricsSrv *http.Server, done chan<- struct{}, cleanup func(context.Context)) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	cleanup(ctx)
	startup.LogShutdownComplete()
}
