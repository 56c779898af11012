package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ScottCrass/quakescene/internal/archive"
	"github.com/ScottCrass/quakescene/internal/cache"
	"github.com/ScottCrass/quakescene/internal/channel"
	"github.com/ScottCrass/quakescene/internal/config"
	"github.com/ScottCrass/quakescene/internal/database"
	"github.com/ScottCrass/quakescene/internal/dispatcher"
	"github.com/ScottCrass/quakescene/internal/engine"
	"github.com/ScottCrass/quakescene/internal/feed"
	"github.com/ScottCrass/quakescene/internal/geo"
	"github.com/ScottCrass/quakescene/internal/influx"
	"github.com/ScottCrass/quakescene/internal/logging"
	"github.com/ScottCrass/quakescene/internal/monitor"
	intOtel "github.com/ScottCrass/quakescene/internal/otel"
	"github.com/ScottCrass/quakescene/internal/parser"
	"github.com/ScottCrass/quakescene/internal/stream"
	"github.com/ScottCrass/quakescene/pkg/quake"
	"github.com/ScottCrass/quakescene/pkg/scene"
	"github.com/ScottCrass/quakescene/pkg/streaming"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "quakescene"
)

// loadTimeout bounds one catalog fetch, including a cold feed request.
const loadTimeout = time.Minute

// file paths
var (
	// WorkDir is where the config file and local data files live. It is
	// the process working directory, resolved once at startup.
	WorkDir string

	LogFilePath string
	LogFile     *os.File
)

// global variables
var (
	SessionStartTime time.Time = time.Now()

	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// zlog is the zerolog instance shared by the database, influx and
	// dispatcher layers
	zlog zerolog.Logger

	// Services
	dbManager         *database.Manager
	influxManager     *influx.Manager
	archiveBackend    archive.Backend
	catalogCache      *cache.CatalogCache
	feedClient        *feed.Client
	parserService     *parser.Parser
	overlay           *engine.Service
	publisher         *stream.Publisher
	monitorService    *monitor.Service
	commandDispatcher *dispatcher.Dispatcher

	// frames carries reconciled frames from the engine to whoever is
	// watching: the viewer stream in serve, stdout in demo.
	frames channel.Channel[scene.Frame]
)

// setup initializes configuration, logging and telemetry. It runs before
// any subcommand.
func setup() {
	var err error

	WorkDir, err = os.Getwd()
	if err != nil {
		WorkDir = "."
	}

	// Console logging until the log file is ready.
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	// load config
	err = config.Load(WorkDir)
	if err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	// create logs dir if it doesn't exist
	logsDir := config.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.Mkdir(logsDir, 0755)
	}

	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    LogFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else if otelCfg.Endpoint != "" {
			Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		} else {
			Logger.Info("OTel provider initialized", "file", LogFilePath)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	var extra []slog.Handler
	if config.GetBool("graylog.enabled") {
		gelf, err := logging.NewGelfHandler(config.GetString("graylog.address"), slog.LevelInfo)
		if err != nil {
			Logger.Warn("GELF handler unavailable", "error", err)
		} else {
			extra = append(extra, gelf)
		}
	}

	// Re-setup logging with file output, OTel and GELF fan-out
	SlogManager.Setup(LogFile, config.GetString("logLevel"), otelLogProvider, extra...)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)

	zlog = newZerolog()
}

// newZerolog builds the zerolog instance for the layers that log through
// it, writing to the session log file alongside slog.
func newZerolog() zerolog.Logger {
	var out io.Writer = os.Stdout
	if LogFile != nil {
		out = LogFile
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// buildServices wires the full overlay stack: database, influx, archive,
// feed, engine, viewer stream, status monitor and the control
// dispatcher. Optional services degrade to nil with a warning; only the
// engine itself is required.
func buildServices() error {
	var err error

	dbManager = database.NewManager(zlog)
	dbManager.SqliteFilePath = filepath.Join(WorkDir,
		fmt.Sprintf("%s_%s.db", AppName, SessionStartTime.Format("20060102_150405")))
	if err = dbManager.Connect(); err != nil {
		Logger.Warn("No database available, catalog archive degraded", "error", err)
	} else if err = dbManager.Setup(); err != nil {
		Logger.Warn("Database migration failed", "error", err)
		dbManager.IsValid = false
	}

	influxBackupPath := filepath.Join(config.GetString("logsDir"),
		fmt.Sprintf("influx_backup_%s.gz", SessionStartTime.Format("20060102_150405")))
	influxManager = influx.NewManager(zlog, influxBackupPath)
	if err = influxManager.Connect(); err != nil {
		Logger.Warn("InfluxDB metrics disabled", "error", err)
		influxManager = nil
	}

	archiveCfg := config.GetArchiveConfig()
	if archiveCfg.Type == "db" && !dbManager.IsValid {
		Logger.Warn("db archive requested without a database, using memory archive")
		archiveCfg.Type = "memory"
	}
	archiveBackend, err = archive.NewBackend(archiveCfg, dbManager, Logger)
	if err != nil {
		return fmt.Errorf("failed to build archive backend: %w", err)
	}
	if err = archiveBackend.Init(); err != nil {
		return fmt.Errorf("failed to init archive backend: %w", err)
	}

	feedCfg := config.GetFeedConfig()
	feedClient = feed.New(feedCfg.BaseURL, feedCfg.Contributor, Logger)
	catalogCache = cache.NewCatalogCache(feedCfg.CacheTTL)
	parserService = parser.NewParser(Logger)

	playCfg := config.GetPlaybackConfig()
	frames = channel.New[scene.Frame](64)
	overlay, err = engine.New(engine.Dependencies{
		Feed:        feedClient,
		Cache:       catalogCache,
		Archive:     archiveBackend,
		Influx:      influxManager,
		Frames:      frames,
		Logger:      Logger,
		Contributor: feedCfg.Contributor,
	}, engine.Config{
		Speed:         playCfg.DaysPerSecond,
		FrameInterval: frameInterval(playCfg.FrameRateHz),
		Ramp:          playCfg.ColorRamp,
		AutoResume:    playCfg.AutoResume,
	})
	if err != nil {
		return fmt.Errorf("failed to build overlay engine: %w", err)
	}

	if ext := terrainPreset(); ext.Ready() {
		overlay.SetTerrainExtent(ext)
		Logger.Info("Applied configured terrain extent",
			"minLat", ext.MinLat, "maxLat", ext.MaxLat,
			"minLon", ext.MinLon, "maxLon", ext.MaxLon)
	}

	// Everything above the engine logs with the loaded catalog and
	// playback position attached. The engine keeps the plain logger;
	// the provider reads engine state and must not run under its lock.
	daemonLog := slog.New(logging.NewContextHandler(Logger.Handler(), engineContext))

	streamCfg := config.GetStreamConfig()
	if streamCfg.Enabled {
		publisher = stream.New(stream.Config{URL: streamCfg.URL, Token: streamCfg.Token}, daemonLog)
		publisher.OnControl(routeControl)
		overlay.OnTimeRangeChange(func(rng quake.TimeRange, defined bool) {
			if err := publisher.PublishTimeRange(rng, defined); err != nil {
				daemonLog.Debug("Time range not published", "error", err)
			}
		})
	}

	monitorService = monitor.NewService(monitor.Dependencies{
		Engine:    overlay,
		Archive:   archiveBackend,
		Influx:    influxManager,
		Logger:    daemonLog,
		StatusDir: config.GetString("logsDir"),
	})

	commandDispatcher, err = dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		return fmt.Errorf("failed to build dispatcher: %w", err)
	}
	registerControlHandlers(daemonLog)

	return nil
}

// engineContext supplies the loaded catalog and playback position as log
// attributes. Nil until a catalog is loaded.
func engineContext() []slog.Attr {
	if overlay == nil {
		return nil
	}
	st := overlay.Status()
	if st.QueryKey == "" {
		return nil
	}
	return []slog.Attr{
		slog.String("queryKey", st.QueryKey),
		slog.String("playback", st.State),
		slog.Int64("cursor", st.Cursor),
	}
}

// frameInterval converts a frame rate in Hz to a tick period.
func frameInterval(hz int) time.Duration {
	if hz <= 0 {
		hz = 30
	}
	return time.Second / time.Duration(hz)
}

// terrainPreset reads the optional terrain extent from config. With no
// box configured the zero extent is returned and mapping waits for an
// :EXTENT: command.
func terrainPreset() geo.Extent {
	return geo.Extent{
		MinLat: config.GetFloat64("terrain.minLat"),
		MaxLat: config.GetFloat64("terrain.maxLat"),
		MinLon: config.GetFloat64("terrain.minLon"),
		MaxLon: config.GetFloat64("terrain.maxLon"),
		Width:  config.GetFloat64("terrain.sceneWidth"),
		Height: config.GetFloat64("terrain.sceneHeight"),
	}
}

// routeControl maps a viewer control message onto a dispatcher command.
// Runs on the WebSocket read goroutine.
func routeControl(msg streaming.ControlMessage) {
	name := ":" + strings.ToUpper(msg.Command) + ":"
	if !commandDispatcher.HasHandler(name) {
		Logger.Warn("Unknown viewer command", "command", msg.Command)
		return
	}
	if _, err := commandDispatcher.Dispatch(dispatcher.Command{
		Name:       name,
		Args:       msg.Args,
		ReceivedAt: time.Now(),
	}); err != nil {
		Logger.Warn("Viewer command failed", "command", msg.Command, "error", err)
	}
}

// registerControlHandlers binds the overlay control surface. Handler
// names follow the :NAME: convention shared with the viewer control
// channel.
func registerControlHandlers(log *slog.Logger) {
	d := commandDispatcher

	d.Register(":VERSION:", func(_ dispatcher.Command) (any, error) {
		return []string{CurrentVersion, BuildDate}, nil
	})

	d.Register(":STATUS:", func(_ dispatcher.Command) (any, error) {
		rendered, _ := monitorService.StatusReport()
		return rendered, nil
	})

	d.Register(":LOAD:", func(cmd dispatcher.Command) (any, error) {
		q, err := parserService.ParseLoadQuery(cmd.Args)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		if err := overlay.Load(ctx, q); err != nil {
			return nil, err
		}
		st := overlay.Status()
		if publisher != nil {
			if rng, defined := overlay.TimeRange(); defined {
				err := publisher.Hello(streaming.HelloPayload{
					QueryKey:   st.QueryKey,
					Bounds:     q.Bounds,
					TimeRange:  rng,
					EventCount: st.Events,
				})
				if err != nil {
					log.Warn("Viewer hello failed", "error", err)
				}
			}
		}
		return st.Events, nil
	}, dispatcher.Logged())

	d.Register(":PLAY:", func(_ dispatcher.Command) (any, error) {
		overlay.Play()
		return "ok", nil
	})
	d.Register(":RESUME:", func(_ dispatcher.Command) (any, error) {
		overlay.Resume()
		return "ok", nil
	})
	d.Register(":PAUSE:", func(_ dispatcher.Command) (any, error) {
		overlay.Pause()
		return "ok", nil
	})
	d.Register(":STOP:", func(_ dispatcher.Command) (any, error) {
		overlay.Stop()
		return "ok", nil
	})

	d.Register(":SEEK:", func(cmd dispatcher.Command) (any, error) {
		cursor, err := parserService.ParseSeek(cmd.Args)
		if err != nil {
			return nil, err
		}
		overlay.Seek(cursor)
		return "ok", nil
	})

	d.Register(":SPEED:", func(cmd dispatcher.Command) (any, error) {
		speed, err := parserService.ParseSpeed(cmd.Args)
		if err != nil {
			return nil, err
		}
		overlay.SetPlaybackSpeed(speed)
		return "ok", nil
	})

	d.Register(":EXTENT:", func(cmd dispatcher.Command) (any, error) {
		ext, err := parserService.ParseExtent(cmd.Args)
		if err != nil {
			return nil, err
		}
		overlay.SetTerrainExtent(ext)
		return "ok", nil
	})

	d.Register(":VISUALIZE:", func(cmd dispatcher.Command) (any, error) {
		if len(cmd.Args) == 0 {
			overlay.VisualizeNow()
			return "ok", nil
		}
		cutoff, err := parserService.ParseSeek(cmd.Args)
		if err != nil {
			return nil, err
		}
		overlay.VisualizeAt(cutoff)
		return "ok", nil
	})

	d.Register(":SELECT:", func(cmd dispatcher.Command) (any, error) {
		id, err := parserService.ParseSelect(cmd.Args)
		if err != nil {
			return nil, err
		}
		overlay.SetSelectedEarthquake(id)
		if publisher != nil {
			if err := publisher.PublishSelection(id); err != nil {
				log.Debug("Selection not published", "error", err)
			}
		}
		return "ok", nil
	})

	d.Register(":CLEARSELECT:", func(_ dispatcher.Command) (any, error) {
		overlay.ClearSelectedEarthquake()
		if publisher != nil {
			if err := publisher.PublishSelection(""); err != nil {
				log.Debug("Selection not published", "error", err)
			}
		}
		return "ok", nil
	})

	d.Register(":LOG:", func(cmd dispatcher.Command) (any, error) {
		if len(cmd.Args) < 3 {
			return nil, fmt.Errorf(":LOG: expects [function, message, level], got %d args", len(cmd.Args))
		}
		SlogManager.WriteLog(cmd.Args[0], cmd.Args[1], cmd.Args[2])
		return "ok", nil
	})
}

// shutdown releases services in reverse dependency order. Safe to call
// with a partially built stack.
func shutdown() {
	if monitorService != nil {
		monitorService.Stop()
	}
	if publisher != nil {
		if err := publisher.Goodbye(); err != nil {
			Logger.Debug("Viewer goodbye failed", "error", err)
		}
		publisher.Close()
	}
	if overlay != nil {
		overlay.Dispose()
	}
	if archiveBackend != nil {
		if err := archiveBackend.Close(); err != nil {
			Logger.Warn("Archive close failed", "error", err)
		}
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			Logger.Warn("InfluxDB close failed", "error", err)
		}
	}
	if OTelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("OTel shutdown failed", "error", err)
		}
		cancel()
	}
	if LogFile != nil {
		LogFile.Close()
	}
}

func main() {
	setup()
	Logger.Info("Starting up...", "version", CurrentVersion, "build", BuildDate)

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		shutdown()
		os.Exit(2)
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "serve":
		err = runServe()
	case "demo":
		err = runDemo()
	case "fetch":
		err = runFetch(args[1:])
	case "export":
		err = runExport(args[1:])
	case "catalogs":
		err = runCatalogs()
	case "version":
		fmt.Printf("%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", args[0])
	}

	if err != nil {
		Logger.Error("Command failed", "command", args[0], "error", err)
		shutdown()
		os.Exit(1)
	}
	shutdown()
}
