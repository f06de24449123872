package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"doubtDesk/config"
	"doubtDesk/processors"
	"doubtDesk/server"
	"doubtDesk/storage"
	"doubtDesk/tasks"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	store := storage.NewStore(cfg)
	embedder := processors.PickEmbedder(cfg)
	generator := processors.PickGenerator(cfg)

	pipeline := processors.NewIngestPipeline(store, embedder, cfg.ChunkWordBudget)
	runner := tasks.NewUploadProcessor(pipeline, cfg.UploadWorkers)
	runner.Start()

	srv := server.NewServer(cfg, store, embedder, generator, runner)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	httpServer := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		log.Printf("doubtDesk listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Warning: server shutdown: %v", err)
	}
	runner.Shutdown()
	log.Println("Shutdown complete")
}
