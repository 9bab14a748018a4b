// Command isecgw is the ISECNet gateway daemon.
//
// It bridges automation platforms to Intelbras alarm panels: panels are
// reached over the vendor's cloud relay or a direct IP-receiver
// endpoint, panel metadata and the event feed come from the Guardian
// vendor cloud, and state changes fan out to event subscribers. The
// daemon keeps panel sessions pooled, caches credentials and the last
// known panel state across restarts, and advertises itself over mDNS
// so local clients can find it.
//
// Usage:
//
//	isecgw [flags]
//
// Flags:
//
//	-config string      YAML configuration file path
//	-listen string      Address for the HTTP layer to bind (default ":8422")
//	-state-file string  Path for persisted state (default "isecgw-state.json")
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-capture string     Write protocol captures to this file
//	-advertise          Advertise the gateway over mDNS (default true)
//	-interactive        Enable the interactive console
//	-reset              Clear persisted state before starting
//	-version            Print the version and exit
//
// Examples:
//
//	# Start with defaults, state in the working directory
//	isecgw
//
//	# Start with a config file and protocol capture
//	isecgw -config /etc/isecgw.yaml -capture /var/log/isecgw.capture
//
//	# Drive panels by hand from the console
//	isecgw -interactive -log-level warn
//
//	# Forget stored tokens, passwords, and snapshots
//	isecgw -state-file /var/lib/isecgw/state.json -reset
//
// Interactive Commands:
//
//	login <username>         - Log in to the vendor cloud
//	logout                   - Drop the cloud session
//	panels                   - List the account's alarm centrals
//	use <panel-id>           - Select the panel for later commands
//	password <pw>            - Store the selected panel's password
//	status                   - Read the selected panel's status
//	full                     - Read the complete status (wireless detail)
//	arm [partition] [stay]   - Arm away, or stay with the keyword
//	disarm [partition]       - Disarm
//	siren-off                - Silence the siren
//	bypass <zones...> on|off - Bypass or reinstate zones
//	pgm <index> on|off       - Drive a PGM output
//	mac                      - Read the panel MAC
//	events on|off            - Stream state changes and cloud events
//	stats                    - Show store, pool, and subscriber counters
//	quit                     - Stop the gateway
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/isecnet-bridge/isecnet-go/cmd/isecgw/interactive"
	"github.com/isecnet-bridge/isecnet-go/pkg/discovery"
	"github.com/isecnet-bridge/isecnet-go/pkg/events"
	"github.com/isecnet-bridge/isecnet-go/pkg/guardian"
	"github.com/isecnet-bridge/isecnet-go/pkg/log"
	"github.com/isecnet-bridge/isecnet-go/pkg/persistence"
	"github.com/isecnet-bridge/isecnet-go/pkg/poller"
	"github.com/isecnet-bridge/isecnet-go/pkg/pool"
	"github.com/isecnet-bridge/isecnet-go/pkg/service"
	"github.com/isecnet-bridge/isecnet-go/pkg/session"
	"github.com/isecnet-bridge/isecnet-go/pkg/version"
)

// Config holds the gateway configuration.
// It implements interactive.GatewayConfig.
type Config struct {
	ConfigFile  string
	Listen      string
	StateFile   string
	LogLevel    string
	Capture     string
	Advertise   bool
	Interactive bool
	Reset       bool
	ShowVersion bool

	// Instance is the mDNS instance name, settable only from the
	// config file.
	Instance string
}

// ListenAddr implements interactive.GatewayConfig.
func (c *Config) ListenAddr() string { return c.Listen }

// StatePath implements interactive.GatewayConfig.
func (c *Config) StatePath() string { return c.StateFile }

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "YAML configuration file path")
	flag.StringVar(&config.Listen, "listen", ":8422", "Address for the HTTP layer to bind")
	flag.StringVar(&config.StateFile, "state-file", "isecgw-state.json", "Path for persisted state")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.Capture, "capture", "", "Write protocol captures to this file")
	flag.BoolVar(&config.Advertise, "advertise", true, "Advertise the gateway over mDNS")
	flag.BoolVar(&config.Interactive, "interactive", false, "Enable the interactive console")
	flag.BoolVar(&config.Reset, "reset", false, "Clear persisted state before starting")
	flag.BoolVar(&config.ShowVersion, "version", false, "Print the version and exit")
}

func main() {
	flag.Parse()

	if config.ShowVersion {
		fmt.Println("isecgw " + version.String())
		return
	}

	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	var fileCfg FileConfig
	if config.ConfigFile != "" {
		fc, err := loadFileConfig(config.ConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "isecgw: %v\n", err)
			os.Exit(1)
		}
		fileCfg = fc
		config.applyFile(fc, setFlags)
	}

	out := &logWriter{out: os.Stderr}
	slogger := setupLogging(out, config.LogLevel)

	slogger.Info("isecnet gateway starting", "version", version.String())

	if config.Reset && config.StateFile != "" {
		if err := os.Remove(config.StateFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slogger.Warn("state reset failed", "path", config.StateFile, "error", err)
		} else {
			slogger.Info("persisted state cleared", "path", config.StateFile)
		}
	}

	store, err := persistence.New(persistence.Config{
		Path:        config.StateFile,
		ConnInfoTTL: fileCfg.Store.ConnInfoTTL.std(),
	})
	if err != nil {
		slogger.Error("opening state store", "path", config.StateFile, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store.StartCleanup(ctx)

	// Protocol events go to the human log and, when enabled, to the
	// capture file.
	sinks := []log.Logger{log.NewSlogAdapter(slogger)}
	var capture *log.FileLogger
	if config.Capture != "" {
		capture, err = log.NewFileLogger(config.Capture)
		if err != nil {
			slogger.Error("opening capture file", "path", config.Capture, "error", err)
			os.Exit(1)
		}
		slogger.Info("protocol capture enabled", "path", config.Capture)
		sinks = append(sinks, capture)
	}
	protoLog := log.NewMultiLogger(sinks...)

	sessionCfg := session.DefaultConfig()
	if d := fileCfg.Session.ConnectTimeout.std(); d > 0 {
		sessionCfg.ConnectTimeout = d
	}
	if d := fileCfg.Session.ReadTimeout.std(); d > 0 {
		sessionCfg.ReadTimeout = d
	}
	if d := fileCfg.Session.ArmReadTimeout.std(); d > 0 {
		sessionCfg.ArmReadTimeout = d
	}
	if len(fileCfg.Session.RelayAddrs) > 0 {
		sessionCfg.RelayAddrs = fileCfg.Session.RelayAddrs
	}
	sessionCfg.Logger = protoLog

	panelPool := pool.New(pool.Config{
		IdleTimeout:   fileCfg.Pool.IdleTimeout.std(),
		SweepInterval: fileCfg.Pool.SweepInterval.std(),
		SessionConfig: sessionCfg,
		Logger:        protoLog,
	})

	bus := events.NewBroadcaster()

	cloud := guardian.NewClient(guardian.Config{BaseURL: fileCfg.Cloud.BaseURL})

	authCfg := guardian.DefaultAuthConfig()
	authCfg.Store = store
	authCfg.Logger = slogger
	if fileCfg.Cloud.TokenURL != "" {
		authCfg.TokenURL = fileCfg.Cloud.TokenURL
	}
	if fileCfg.Cloud.BaseURL != "" {
		authCfg.BaseURL = fileCfg.Cloud.BaseURL
	}
	if fileCfg.Cloud.ClientID != "" {
		authCfg.ClientID = fileCfg.Cloud.ClientID
	}
	auth, err := guardian.NewAuth(authCfg)
	if err != nil {
		slogger.Error("building cloud auth", "error", err)
		os.Exit(1)
	}

	eventPoller, err := poller.New(poller.Config{
		Cloud:       cloud,
		Tokens:      auth,
		Broadcaster: bus,
		Interval:    fileCfg.Cloud.PollInterval.std(),
		Logger:      slogger,
	})
	if err != nil {
		slogger.Error("building event poller", "error", err)
		os.Exit(1)
	}
	// The poller follows the subscriber count: first subscriber starts
	// it, last one leaving stops it.
	eventPoller.Bind()

	svc, err := service.New(service.Config{
		Pool:        panelPool,
		Store:       store,
		Broadcaster: bus,
		Tokens:      auth,
		Cloud:       cloud,
		Logger:      protoLog,
	})
	if err != nil {
		slogger.Error("building alarm service", "error", err)
		os.Exit(1)
	}

	var adv *discovery.Advertiser
	if config.Advertise {
		adv = discovery.New(discovery.Config{
			Instance: config.Instance,
			Port:     listenPort(config.Listen),
			Version:  version.Version,
		})
		if err := adv.Advertise(nil); err != nil {
			slogger.Warn("mdns advertisement failed", "error", err)
			adv = nil
		} else {
			slogger.Info("advertising gateway", "service", discovery.Service, "port", listenPort(config.Listen))
		}
	}

	// The HTTP layer binds this address; the daemon itself only
	// records it.
	slogger.Info("gateway ready", "listen", config.Listen, "state_file", config.StateFile)

	if config.Interactive {
		console, err := interactive.New(interactive.Gateway{
			Service: svc,
			Auth:    auth,
			Cloud:   cloud,
			Store:   store,
			Pool:    panelPool,
			Bus:     bus,
		}, &config)
		if err != nil {
			slogger.Error("starting console", "error", err)
			os.Exit(1)
		}
		// Route log output through readline so log lines do not
		// clobber the prompt.
		out.SetOutput(console.Stdout())
		go console.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slogger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
		// Canceled by the console's quit command.
	}

	slogger.Info("shutting down")

	if adv != nil {
		adv.Shutdown()
	}
	eventPoller.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	panelPool.Shutdown(shutdownCtx)
	shutdownCancel()

	if capture != nil {
		if err := capture.Close(); err != nil {
			slogger.Warn("closing capture file", "error", err)
		}
	}

	slogger.Info("gateway stopped")
}

// setupLogging builds the human log at the requested level and installs
// it as the slog default. Writes go through out so the interactive
// console can later redirect them.
func setupLogging(out io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// listenPort extracts the TCP port from a listen address for the mDNS
// advertisement. Returns 0 when the address carries no usable port,
// which keeps the advertiser's default.
func listenPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

// logWriter is an io.Writer whose destination can be swapped at
// runtime. Components keep their logger; only the sink moves when the
// interactive console takes over the terminal.
type logWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Write(p)
}

// SetOutput redirects subsequent writes to out.
func (w *logWriter) SetOutput(out io.Writer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.out = out
}
