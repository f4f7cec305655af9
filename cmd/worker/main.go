/**
 * Extraction worker - main entry point.
 *
 * Redis-backed worker that extracts text from PDF, DOCX and image documents
 * covering English, Hindi and Punjabi. Scanned pages are routed between a
 * single-language searchable-PDF pipeline (ocrmypdf) and a multi-language
 * raw pipeline (tesseract) based on per-page script analysis.
 */

package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lipiscan/extract-worker/internal/config"
	"github.com/lipiscan/extract-worker/internal/execx"
	"github.com/lipiscan/extract-worker/internal/language"
	"github.com/lipiscan/extract-worker/internal/logging"
	"github.com/lipiscan/extract-worker/internal/ocr"
	"github.com/lipiscan/extract-worker/internal/pdfio"
	"github.com/lipiscan/extract-worker/internal/processor"
	"github.com/lipiscan/extract-worker/internal/queue"
	"github.com/lipiscan/extract-worker/internal/storage"
	"github.com/lipiscan/extract-worker/internal/tempfiles"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLogger("worker")
	logger.Info("starting", "queue", cfg.QueueName, "concurrency", cfg.WorkerConcurrency,
		"dpi", cfg.RasterDPI)

	db, err := storage.NewPostgresClient(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", "error", err)
	}
	defer db.Close()

	cache, err := storage.NewResultCache(cfg.RedisURL, cfg.ResultTTL)
	if err != nil {
		logger.Fatal("failed to connect to Redis", "error", err)
	}
	defer cache.Close()

	tmp, err := tempfiles.NewManager(cfg.TempDir, cfg.CleanupMaxAttempts, cfg.CleanupBackoff, logger)
	if err != nil {
		logger.Fatal("failed to prepare temp directory", "dir", cfg.TempDir, "error", err)
	}

	runner := execx.NewRunner()
	reader := pdfio.NewReader()
	rasterizer := pdfio.NewRasterizer(cfg.PDFToPPMPath, cfg.RasterDPI, runner, tmp)

	inferrer := language.NewInferrer(cfg, language.NewLinguaDetector())
	selector := ocr.NewSelector(cfg.SingleEnglishScore, cfg.SingleOtherMaxScore)
	singleEngine := ocr.NewOCRmyPDFEngine(cfg.OCRmyPDFPath, runner, reader, tmp)
	multiEngine := ocr.NewTesseractEngine()

	pageProc := processor.NewPageProcessor(
		cfg,
		logging.NewLogger("page"),
		inferrer,
		selector,
		singleEngine,
		multiEngine,
		rasterizer,
		reader,
		tmp,
	)
	docProc := processor.NewDocumentProcessor(
		cfg,
		logging.NewLogger("document"),
		inferrer,
		pageProc,
		reader,
		tmp,
	)

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         cfg.QueueName,
		Concurrency:       cfg.WorkerConcurrency,
		ProcessingTimeout: cfg.ProcessingTimeout,
		Processor:         docProc,
		Store:             db,
		Cache:             cache,
	})
	if err != nil {
		logger.Fatal("failed to initialize queue consumer", "error", err)
	}

	go func() {
		if err := consumer.Start(); err != nil {
			logger.Fatal("queue consumer stopped unexpectedly", "error", err)
		}
	}()

	logger.Info("ready, waiting for jobs")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan

	logger.Info("shutting down", "signal", sig)
	consumer.Shutdown()
	logger.Info("shutdown complete")
}
