// remotefs-server exports a directory tree or an S3 bucket over the
// HTTP protocol the remotefs mount client consumes.
//
// Usage:
//
//	remotefs-server [--addr HOST:PORT] [--root DIR]
//	remotefs-server [--addr HOST:PORT] --s3-bucket BUCKET [--s3-endpoint URL]
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/remotefs/remotefs/internal/logging"
	"github.com/remotefs/remotefs/internal/server"
	"github.com/remotefs/remotefs/internal/server/storage"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8000", "Listen address")
	root := flag.String("root", ".", "Directory to export (local backend)")
	s3Bucket := flag.String("s3-bucket", "", "Serve from this S3 bucket instead of a local directory")
	s3Endpoint := flag.String("s3-endpoint", "", "Custom S3 endpoint (for MinIO)")
	s3Prefix := flag.String("s3-prefix", "", "Key prefix to export from the bucket")
	s3Region := flag.String("s3-region", "us-east-1", "S3 region")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "console", "Log format: console, json")
	flag.Parse()

	if err := logging.Init(logging.Config{Level: *logLevel, Format: *logFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var backend storage.Backend
	var err error
	if *s3Bucket != "" {
		backend, err = storage.NewS3(ctx, storage.S3Config{
			Endpoint:  *s3Endpoint,
			Bucket:    *s3Bucket,
			Prefix:    *s3Prefix,
			AccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Region:    *s3Region,
		})
		if err == nil {
			logging.Info("serving S3 bucket",
				zap.String("bucket", *s3Bucket),
				zap.String("prefix", *s3Prefix))
		}
	} else {
		backend, err = storage.NewLocal(*root)
		if err == nil {
			logging.Info("serving local directory", zap.String("root", *root))
		}
	}
	if err != nil {
		logging.Error("backend setup failed", zap.Error(err))
		os.Exit(1)
	}

	if err := server.New(backend).Run(ctx, *addr); err != nil && err != http.ErrServerClosed {
		logging.Error("server failed", zap.Error(err))
		os.Exit(1)
	}
	logging.Info("server stopped")
}
