package main

import (
    "context"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "path/filepath"
    "syscall"

    "github.com/rs/zerolog/log"

    cfgpkg "github.com/local/docviewer/internal/config"
    "github.com/local/docviewer/internal/document"
    "github.com/local/docviewer/internal/eventloop"
    "github.com/local/docviewer/internal/imagerender"
    logpkg "github.com/local/docviewer/internal/logger"
    "github.com/local/docviewer/internal/metrics"
    "github.com/local/docviewer/internal/statuscheck"
    "github.com/local/docviewer/internal/store"
    "github.com/local/docviewer/internal/viewer"
    web "github.com/local/docviewer/internal/web"
)

func main() {
    cfg := cfgpkg.FromEnv()

    // Init logging
    _ = logpkg.Init(logpkg.Options{
        Level: cfg.Logging.Level,
        Pretty: cfg.Logging.Pretty,
        Service: "docviewer",
        File: cfg.Logging.File,
        MaxSizeMB: cfg.Logging.MaxSizeMB,
        MaxBackups: cfg.Logging.MaxBackups,
        MaxAgeDays: cfg.Logging.MaxAgeDays,
        Compress: cfg.Logging.Compress,
        SendToAxiom: cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey: cfg.Axiom.APIKey,
        AxiomOrgID: cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush: cfg.Axiom.FlushInterval,
    })
    defer logpkg.Close()

    metrics.Init()

    // Optional Redis mirror of the view state
    var (
        views     *store.RedisViewStore
        publisher *store.Publisher
        pinger    statuscheck.RedisPinger
        mirror    web.MirrorReader
    )
    if cfg.Store.RedisURL != "" {
        vs, err := store.NewRedisViewStore(cfg.Store.RedisURL, cfg.Store.KeyPrefix, cfg.Store.TTL)
        if err != nil {
            log.Fatal().Err(err).Msg("failed to init redis view store")
        }
        defer vs.Close()
        views = vs
        publisher = store.NewPublisher(views, cfg.Store.ViewerID)
        defer publisher.Close()
        pinger, mirror = views, views
    }

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    loop := eventloop.New(cfg.Viewer.EventBuffer)
    go loop.Run(ctx)

    renderer := imagerender.NewFitzRenderer(imagerender.Options{
        BaseDPI:   cfg.Viewer.RenderDPI,
        Quality:   cfg.Viewer.JPEGQuality,
        ColorMode: imagerender.ColorMode(cfg.Viewer.ColorMode),
    })

    var binder *viewer.Binder
    opts := viewer.Options{
        Renderer: renderer,
        Post: func(fn func()) {
            if !loop.Post(fn) {
                log.Debug().Msg("event loop stopped; dropping completion")
            }
        },
        // Dismiss runs on the loop, so the binder can be flipped directly.
        OnOpenChange:       func(open bool) { binder.SetOpen(open) },
        MaterializeTimeout: cfg.Viewer.MaterializeTimeout,
        RenderTimeout:      cfg.Viewer.RenderTimeout,
        Title:              cfg.Viewer.Title,
        Filename:           cfg.Viewer.Filename,
    }
    if publisher != nil {
        opts.Observer = publisher.Publish
    }
    ctrl, err := viewer.New(opts)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to create viewer")
    }
    binder = viewer.NewBinder(ctrl)

    sourceRoot := cfg.Export.SourceRoot
    if sourceRoot != "" {
        abs, err := filepath.Abs(sourceRoot)
        if err != nil { log.Fatal().Err(err).Str("root", sourceRoot).Msg("invalid SOURCE_ROOT") }
        sourceRoot = abs
    }
    loader := &document.Loader{
        Stores:    document.S3Stores(cfg.Export.PartSizeMB),
        ExportDir: cfg.Export.ExportDir,
        Root:      sourceRoot,
        AllowHTTP: cfg.Export.AllowHTTP,
    }
    log.Info().Str("source_root", sourceRoot).Bool("http_sources", cfg.Export.AllowHTTP).Str("export_dir", cfg.Export.ExportDir).Msg("document sources configured")

    mux := http.NewServeMux()
    mux.Handle("/metrics", metrics.Handler())
    web.New(web.Options{
        Loop:   loop,
        Ctrl:   ctrl,
        Binder: binder,
        Load: func(ctx context.Context, ref, password string) (viewer.Document, error) {
            doc, err := loader.Load(ctx, ref, password)
            if err != nil { return nil, err }
            return doc, nil
        },
        Status:   statuscheck.New(statuscheck.Options{Redis: pinger, S3Bucket: cfg.Export.S3Bucket}),
        Mirror:   mirror,
        ViewerID: cfg.Store.ViewerID,
        Username: cfg.HTTP.Username,
        Password: cfg.HTTP.Password,
    }).RegisterRoutes(mux)

    srv := &http.Server{Addr: ":"+cfg.HTTP.Port, Handler: mux}

    go func(){
        log.Info().Msgf("HTTP server listening on :%s", cfg.HTTP.Port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    sctx, scancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
    defer scancel()
    _ = srv.Shutdown(sctx)

    // Close the session on the loop so its resource is released.
    _ = loop.Do(sctx, func() { binder.SetOpen(false) })
    loop.Stop()
    <-loop.Done()
    fmt.Println("shutdown complete")
}
