package startup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"video-overlay/internal/logging"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"golang.org/x/term"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// Codec engines selectable with CODEC_ENGINE.
const (
	EngineWasm   = "wasm"
	EngineNative = "native"
)

// Cross-Origin-Embedder-Policy values accepted by COEP_MODE.
const (
	COEPCredentialless = "credentialless"
	COEPRequireCorp    = "require-corp"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	Port            string
	BindAddr        string
	MetricsPort     string
	MetricsEnabled  bool
	LogStaticFiles  bool
	LogHealthChecks bool

	// Codec engine
	Engine     string
	AssetsDir  string
	AssetsURL  string
	FFmpegPath string

	COEPMode       string
	MaxUploadBytes int64
}

// Addr returns the application listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.BindAddr, c.Port)
}

// MetricsAddr returns the metrics listen address.
func (c *Config) MetricsAddr() string {
	return net.JoinHostPort(c.BindAddr, c.MetricsPort)
}

// AssetsBaseURL returns the URL the codec assets are fetched from. A path
// such as "/" is resolved against listenAddr, the address the application
// server is bound to, so the loader reads the app's own runtime endpoints.
// It returns "" when assets come from the directory.
func (c *Config) AssetsBaseURL(listenAddr string) string {
	if strings.HasPrefix(c.AssetsURL, "/") {
		return "http://" + listenAddr + c.AssetsURL
	}
	return c.AssetsURL
}

// LoadEnvFile loads variables from path into the environment without
// overriding ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	envFileErr := LoadEnvFile(getEnv("ENV_FILE", ".env"))

	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	if envFileErr != nil {
		logging.Warn("  %v", envFileErr)
	}

	port := getEnv("PORT", "8080")
	bindAddr := getEnv("BIND_ADDR", "127.0.0.1")
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsEnabled := getEnvBool("METRICS_ENABLED", false)
	engine := strings.ToLower(getEnv("CODEC_ENGINE", EngineWasm))
	assetsDir := getEnv("CODEC_ASSETS_DIR", "./assets")
	assetsURL := getEnv("CODEC_ASSETS_URL", "")
	ffmpegPath := getEnv("FFMPEG_PATH", "ffmpeg")
	coepMode := strings.ToLower(getEnv("COEP_MODE", COEPCredentialless))
	maxUploadMB := getEnvInt("MAX_UPLOAD_MB", 200)
	logStaticFiles := getEnvBool("LOG_STATIC_FILES", false)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", false)

	logging.Info("  PORT:                %s", port)
	logging.Info("  BIND_ADDR:           %s", bindAddr)
	logging.Info("  METRICS_PORT:        %s", metricsPort)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  CODEC_ENGINE:        %s", engine)
	logging.Info("  CODEC_ASSETS_DIR:    %s", assetsDir)
	if assetsURL != "" {
		logging.Info("  CODEC_ASSETS_URL:    %s", assetsURL)
	}
	logging.Info("  FFMPEG_PATH:         %s", ffmpegPath)
	logging.Info("  COEP_MODE:           %s", coepMode)
	logging.Info("  MAX_UPLOAD_MB:       %d", maxUploadMB)
	logging.Info("  LOG_STATIC_FILES:    %v", logStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	if engine != EngineWasm && engine != EngineNative {
		return nil, fmt.Errorf("invalid CODEC_ENGINE %q (want %s or %s)", engine, EngineWasm, EngineNative)
	}

	if coepMode != COEPCredentialless && coepMode != COEPRequireCorp {
		logging.Warn("  Invalid COEP_MODE, using default: %s", COEPCredentialless)
		coepMode = COEPCredentialless
	}

	if maxUploadMB <= 0 {
		logging.Warn("  Invalid MAX_UPLOAD_MB, using default: 200")
		maxUploadMB = 200
	}

	assetsDir, err := filepath.Abs(assetsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve codec assets directory path: %w", err)
	}

	return &Config{
		Port:            port,
		BindAddr:        bindAddr,
		MetricsPort:     metricsPort,
		MetricsEnabled:  metricsEnabled,
		LogStaticFiles:  logStaticFiles,
		LogHealthChecks: logHealthChecks,
		Engine:          engine,
		AssetsDir:       assetsDir,
		AssetsURL:       trimAssetsURL(assetsURL),
		FFmpegPath:      ffmpegPath,
		COEPMode:        coepMode,
		MaxUploadBytes:  int64(maxUploadMB) << 20,
	}, nil
}

// LogCodecInit logs the codec engine choice and checks its prerequisites.
// Problems are warnings only; the runtime loader reports the real outcome.
func LogCodecInit(config *Config, assetNames []string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CODEC RUNTIME")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Engine: %s", config.Engine)

	switch config.Engine {
	case EngineNative:
		if err := checkFFmpeg(config.FFmpegPath); err != nil {
			logging.Warn("  FFmpeg check failed: %v", err)
			logging.Warn("  Overlay processing will not be available")
		} else {
			logging.Info("  [OK] FFmpeg is available")
		}
	default:
		if config.AssetsURL != "" {
			logging.Info("  Assets source: %s", config.AssetsURL)
			return
		}
		logging.Info("  Assets source: %s", config.AssetsDir)
		for _, name := range assetNames {
			info, err := os.Stat(filepath.Join(config.AssetsDir, name))
			if err != nil {
				logging.Warn("  Missing codec asset %s: %v", name, err)
				continue
			}
			logging.Info("  [OK] %s (%d bytes)", name, info.Size())
		}
	}
	logging.Info("  Loading in background...")
}

// LogRuntimeReady logs the outcome of the runtime load.
func LogRuntimeReady(duration time.Duration, err error) {
	if err != nil {
		logging.Error("  Codec runtime failed to load after %v: %v", duration, err)
		return
	}
	logging.Info("  [OK] Codec runtime ready in %v", duration)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logStaticFiles {
		logging.Info("    Static file logging: ON")
	} else {
		logging.Info("    Static file logging: OFF (set LOG_STATIC_FILES=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Addr            string
	MetricsAddr     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Open in your browser:")
	logging.Info("    Application:   http://%s", config.Addr)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://%s/metrics", config.MetricsAddr)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

const bannerArt = `
------------------------------------------------------------
 __   ___    _            ___              _
 \ \ / (_)__| |___ ___   / _ \__ _____ _ _| |__ _ _  _
  \ V /| / _' / -_) _ \ | (_) \ V / -_) '_| / _' | || |
   \_/ |_\__,_\___\___/  \___/ \_/\___|_| |_\__,_|\_, |
                                                  |__/
------------------------------------------------------------`

// colorize wraps s in an ANSI colour when stdout is a terminal.
func colorize(s string, isTerminal bool) string {
	if !isTerminal {
		return s
	}
	return "\033[36m" + s + "\033[0m"
}

func printBanner() {
	fmt.Println(colorize(bannerArt, term.IsTerminal(int(os.Stdout.Fd()))))
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
	}

	logging.Info("")
}

func checkFFmpeg(ffmpegPath string) error {
	path, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", ffmpegPath)
	}
	logging.Debug("  FFmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(lines[0]))
	}

	return nil
}

func trimAssetsURL(u string) string {
	if len(u) > 1 {
		return strings.TrimSuffix(u, "/")
	}
	return u
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
