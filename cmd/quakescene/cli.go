package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/ScottCrass/quakescene/internal/archive/memory"
	"github.com/ScottCrass/quakescene/internal/config"
	"github.com/ScottCrass/quakescene/internal/database"
	"github.com/ScottCrass/quakescene/internal/dispatcher"
	"github.com/ScottCrass/quakescene/internal/model"
	"github.com/ScottCrass/quakescene/internal/playback"
	"github.com/ScottCrass/quakescene/internal/util"
	"github.com/ScottCrass/quakescene/pkg/quake"
)

// runServe starts the overlay daemon: engine, status monitor and viewer
// stream run until an interrupt arrives. Control comes in over the
// viewer WebSocket.
func runServe() error {
	if err := buildServices(); err != nil {
		return err
	}

	checkFeedStatus()

	monitorService.Start()

	if publisher != nil {
		if err := publisher.Connect(); err != nil {
			Logger.Warn("Viewer stream unavailable, continuing without it", "error", err)
		} else {
			Logger.Info("Viewer stream connected", "url", config.GetString("stream.url"))
		}
	}

	// Frame pump: engine to viewer. Drains even with no viewer so the
	// engine's frame channel cannot back up.
	go func() {
		for f := range frames.Receive() {
			if publisher != nil {
				if err := publisher.PublishFrame(f); err != nil {
					Logger.Debug("Frame not published", "error", err)
				}
			}
		}
	}()

	// In-memory SQLite archives are dumped to disk periodically so a
	// crash loses minutes, not the session.
	if dbManager.IsValid && dbManager.ShouldSaveLocal {
		if dumps, err := database.GetBackupDBPaths(WorkDir); err == nil && len(dumps) > 0 {
			Logger.Info("Found archive dumps from earlier sessions",
				"count", len(dumps), "latest", dumps[len(dumps)-1])
		}
		go func() {
			tick := time.NewTicker(5 * time.Minute)
			defer tick.Stop()
			for range tick.C {
				if err := dbManager.DumpMemoryToDisk(); err != nil {
					Logger.Warn("SQLite disk dump failed", "error", err)
				}
			}
		}()
	}

	Logger.Info("Overlay daemon ready", "pid", os.Getpid())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	Logger.Info("Shutting down", "signal", s.String())
	return nil
}

// checkFeedStatus logs whether the upstream earthquake feed answers.
func checkFeedStatus() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := feedClient.Healthcheck(ctx); err != nil {
		Logger.Info("Earthquake feed is offline", "error", err)
	} else {
		Logger.Info("Earthquake feed is online")
	}
}

// runDemo plays a synthetic catalog against a loopback feed server and
// prints one line per reconciled frame.
func runDemo() error {
	catalog, err := demoCatalog()
	if err != nil {
		return fmt.Errorf("error building demo catalog: %w", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("error starting demo feed: %w", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/fdsnws/event/1/version", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "1.14.1")
	})
	mux.HandleFunc("/fdsnws/event/1/query", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(catalog)
	})
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	defer srv.Close()

	viper.Set("feed.baseUrl", "http://"+ln.Addr().String())
	viper.Set("stream.enabled", false)

	if err := buildServices(); err != nil {
		return err
	}

	var frameCount, spawnedTotal, evictedTotal atomic.Int64
	go func() {
		for f := range frames.Receive() {
			frameCount.Add(1)
			spawnedTotal.Add(int64(f.Created))
			evictedTotal.Add(int64(f.Evicted))
			fmt.Printf("%s  entries=%-4d spawned=%-3d evicted=%d\n",
				util.FormatStamp(f.Time), len(f.Entries), f.Created, f.Evicted)
		}
	}()

	demoStart := time.Now()
	commands := []dispatcher.Command{
		{Name: ":EXTENT:", Args: []string{"32", "42", "-125", "-112"}},
		{Name: ":SPEED:", Args: []string{"5"}},
		{Name: ":LOAD:", Args: []string{"2023-07-01", "2023-07-31", "32", "42", "-125", "-112"}},
		{Name: ":PLAY:"},
	}
	for _, cmd := range commands {
		cmd.ReceivedAt = time.Now()
		if _, err := commandDispatcher.Dispatch(cmd); err != nil {
			return fmt.Errorf("%s failed: %w", cmd.Name, err)
		}
	}

	rng, defined := overlay.TimeRange()
	if !defined {
		return errors.New("demo catalog produced no time range")
	}

	deadline := time.After(2 * time.Minute)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for done := false; !done; {
		select {
		case <-deadline:
			return errors.New("demo playback did not finish in time")
		case <-tick.C:
			done = overlay.State() == playback.Stopped && overlay.CurrentTime() >= rng.End
		}
	}

	// The final frame can still be in flight after playback stops.
	time.Sleep(250 * time.Millisecond)

	fmt.Println("")
	fmt.Println("Demo finished in ", time.Since(demoStart))
	fmt.Printf("Frames: %d, spawned %d, evicted %d\n",
		frameCount.Load(), spawnedTotal.Load(), evictedTotal.Load())
	return nil
}

// demoCatalog builds a synthetic GeoJSON feature collection shaped like
// a month of feed output for a California box.
func demoCatalog() ([]byte, error) {
	var (
		numEvents  = 400
		startTime  = time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)
		windowDays = 30

		minLat, maxLat = 32.5, 41.5
		minLon, maxLon = -124.5, -112.5
		maxDepthKm     = 25.0

		places = []string{
			"10km NE of Ridgecrest, CA",
			"7km SSW of Parkfield, CA",
			"3km W of Cobb, CA",
			"12km E of Little Lake, CA",
			"5km N of Borrego Springs, CA",
			"8km WNW of The Geysers, CA",
			"4km SE of Bodie, CA",
			"15km SW of Searles Valley, CA",
		}
	)

	rnd := rand.New(rand.NewSource(42))
	window := time.Duration(windowDays) * 24 * time.Hour

	// The feed orders results by time ascending, so the demo does too.
	times := make([]int64, numEvents)
	for i := range times {
		times[i] = startTime.Add(time.Duration(rnd.Int63n(int64(window)))).UnixMilli()
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	fc := geojson.NewFeatureCollection()
	for i, at := range times {
		lat := minLat + rnd.Float64()*(maxLat-minLat)
		lon := minLon + rnd.Float64()*(maxLon-minLon)
		depth := rnd.Float64() * maxDepthKm
		mag := 0.5 + rnd.Float64()*5.5

		f := geojson.NewPointFeature([]float64{lon, lat, depth})
		f.ID = fmt.Sprintf("demo%04d", i)
		f.SetProperty("mag", mag)
		f.SetProperty("time", float64(at))
		f.SetProperty("place", places[rnd.Intn(len(places))])
		fc.AddFeature(f)
	}
	return fc.MarshalJSON()
}

// runFetch performs one catalog load and prints a summary.
func runFetch(args []string) error {
	if len(args) == 0 {
		fmt.Println("No query provided.")
		printUsage()
		return errors.New("fetch requires a query")
	}

	if err := buildServices(); err != nil {
		return err
	}

	q, err := parserService.ParseLoadQuery(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	txStart := time.Now()
	if err := overlay.Load(ctx, q); err != nil {
		return err
	}

	st := overlay.Status()
	fmt.Printf("Loaded %d events for %s in %s\n", st.Events, st.QueryKey, time.Since(txStart))

	rng, defined := overlay.TimeRange()
	if !defined {
		fmt.Println("Catalog is empty.")
		return nil
	}
	fmt.Printf("Time range: %s to %s (%s)\n",
		util.FormatStamp(rng.Start), util.FormatStamp(rng.End), rng.Duration())

	if events, ok := catalogCache.Get(q.Key()); ok && len(events) > 0 {
		strongest := events[0]
		for _, ev := range events[1:] {
			if ev.Magnitude > strongest.Magnitude {
				strongest = ev
			}
		}
		fmt.Printf("Strongest: %s at %s\n",
			util.FormatEventText(strongest.Magnitude, strongest.Place),
			util.FormatStamp(strongest.Time))
	}
	return nil
}

// runExport writes archived catalogs as gzipped JSON, one file per
// catalog ID, in the same layout the memory archive exports.
func runExport(catalogIDs []string) error {
	if len(catalogIDs) == 0 {
		fmt.Println("No catalog IDs provided.")
		return errors.New("export requires at least one catalog ID")
	}

	db, err := connectArchiveDB()
	if err != nil {
		return err
	}

	fmt.Println("Exporting catalog IDs: ", catalogIDs)

	for _, catalogID := range catalogIDs {
		idInt, err := strconv.Atoi(catalogID)
		if err != nil {
			return err
		}

		txStart := time.Now()
		var cat model.Catalog
		err = db.Model(&model.Catalog{}).Where("id = ?", idInt).First(&cat).Error
		if err != nil {
			return fmt.Errorf("error getting catalog %d: %w", idInt, err)
		}

		rows := []model.CatalogEvent{}
		err = db.Model(&model.CatalogEvent{}).
			Where("catalog_id = ?", cat.ID).
			Order("time ASC").
			Find(&rows).Error
		if err != nil {
			return fmt.Errorf("error getting catalog events: %w", err)
		}

		events := make([]quake.Earthquake, 0, len(rows))
		for _, row := range rows {
			events = append(events, model.EventToQuake(row))
		}

		export := memory.CatalogExport{
			Generator: AppName,
			QueryKey:  cat.QueryKey,
			StartDate: cat.StartDate,
			EndDate:   cat.EndDate,
			Bounds: quake.Bounds{
				MinLat: cat.MinLat, MaxLat: cat.MaxLat,
				MinLon: cat.MinLon, MaxLon: cat.MaxLon,
			},
			Contributor: cat.Contributor,
			EventCount:  len(events),
			TimeRange:   quake.TimeRange{Start: cat.StartTime, End: cat.EndTime},
			Events:      events,
		}

		span := strings.ReplaceAll(fmt.Sprintf("%s_%s", cat.StartDate, cat.EndDate), "-", "")
		fileName := fmt.Sprintf("catalog_%d_%s.json.gz", cat.ID, span)
		f, err := os.Create(fileName)
		if err != nil {
			return fmt.Errorf("error creating file: %w", err)
		}

		gzWriter := gzip.NewWriter(f)
		if err := json.NewEncoder(gzWriter).Encode(export); err != nil {
			f.Close()
			return fmt.Errorf("error writing export: %w", err)
		}
		if err := gzWriter.Close(); err != nil {
			f.Close()
			return fmt.Errorf("error closing gzip: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}

		fmt.Println("Wrote", len(events), "events to", fileName, "in", time.Since(txStart))
	}

	return nil
}

// runCatalogs lists the archived catalogs, newest first.
func runCatalogs() error {
	db, err := connectArchiveDB()
	if err != nil {
		return err
	}

	cats := []model.Catalog{}
	err = db.Model(&model.Catalog{}).Order("created_at DESC").Find(&cats).Error
	if err != nil {
		return fmt.Errorf("error listing catalogs: %w", err)
	}

	if len(cats) == 0 {
		fmt.Println("No archived catalogs.")
		return nil
	}

	for _, cat := range cats {
		fmt.Printf("%4d  %s  %5d events  archived %s\n",
			cat.ID, cat.QueryKey, cat.EventCount,
			cat.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// connectArchiveDB opens the Postgres archive directly. Export and
// listing refuse the SQLite fallback so a missing database surfaces as
// an error instead of an empty result.
func connectArchiveDB() (*gorm.DB, error) {
	dbm := database.NewManager(zlog)
	db, err := dbm.GetPostgresDB()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	Logger.Info("Database connection established.")
	return db, nil
}

func printUsage() {
	fmt.Println("Usage: quakescene <command> [args]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  serve                 run the overlay daemon")
	fmt.Println("  demo                  play a synthetic catalog and print frames")
	fmt.Println("  fetch <query>         load one catalog and print a summary")
	fmt.Println("  export <id> [id...]   export archived catalogs as gzipped JSON")
	fmt.Println("  catalogs              list archived catalogs")
	fmt.Println("  version               print version and build date")
	fmt.Println("")
	fmt.Println("fetch query: <startDate> <endDate> <minLat> <maxLat> <minLon> <maxLon>")
	fmt.Println("  or one JSON object with those fields")
}
