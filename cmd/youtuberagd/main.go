package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"youtuberag/internal/config"
	"youtuberag/internal/daemon"
	"youtuberag/internal/logging"
	"youtuberag/internal/pipeline"
	"youtuberag/internal/queue"
	"youtuberag/internal/segmenter"
	"youtuberag/internal/services/ffmpeg"
	"youtuberag/internal/services/whisper"
	"youtuberag/internal/services/ytdlp"
	"youtuberag/internal/videos"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return
	}
	defer store.Close()

	videoStore := videos.NewStore(store.DB())

	manager := pipeline.NewManager(cfg, store, videoStore, logger,
		pipeline.NewDownloadHandler(ytdlp.New(cfg, logger)),
		pipeline.NewAudioExtractionHandler(ffmpeg.New(cfg, logger)),
		pipeline.NewTranscriptionHandler(whisper.New(cfg, logger)),
		pipeline.NewSegmentationHandler(segmenter.OptionsFromConfig(cfg)),
	)

	d, err := daemon.New(cfg, store, videoStore, logger, manager)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	d.Stop()
	logger.Info("youtuberagd shut down", slog.String(logging.FieldComponent, "daemon"))
}
