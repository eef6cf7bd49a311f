package main

import (
	"log"
	"os"

	"github.com/salmlabs/video-pipeline/internal/config"
	"github.com/salmlabs/video-pipeline/internal/pipeline"
	"github.com/salmlabs/video-pipeline/internal/server"
	"github.com/salmlabs/video-pipeline/pkg/db/aws"
	"github.com/salmlabs/video-pipeline/pkg/db/postgres"
	"github.com/salmlabs/video-pipeline/pkg/db/redis"
	"github.com/salmlabs/video-pipeline/pkg/logger"
)

func main() {
	log.Println("Starting video pipeline server")

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yml"
	}
	cfgFile, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("loadConfig: %v", err)
	}
	cfg, err := config.ParseConfig(cfgFile)
	if err != nil {
		log.Fatalf("parseConfig: %v", err)
	}

	appLogger := logger.NewApiLogger(cfg)
	appLogger.InitLogger()
	appLogger.Infof("AppVersion: %s, LogLevel: %s, Mode: %s", cfg.Server.AppVersion, cfg.Logger.Level, cfg.Server.Mode)

	psqlDB, err := postgres.NewPsqlDB(cfg)
	if err != nil {
		appLogger.Fatalf("could not connect to db: %s", err)
	}
	appLogger.Infof("db connected, status: %#v", psqlDB.Stats())
	defer psqlDB.Close()

	redisClient, err := redis.NewRedisClient(cfg)
	if err != nil {
		appLogger.Fatalf("could not connect to redis: %s", err)
	}
	defer redisClient.Close()
	appLogger.Infof("redis connected")

	s3Client, err := aws.NewAWSClient(cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.AccessKey, cfg.S3.SecretKey)
	if err != nil {
		if cfg.S3.Enabled {
			appLogger.Fatalf("could not connect to s3: %s", err)
		}
		appLogger.Infof("s3 mirroring disabled: %s", err)
	}

	scheduler := pipeline.NewScheduler(cfg.Worker.WorkerCount, cfg.Worker.QueueSize, cfg.Worker.MaxCPUUsage, cfg.Worker.RejectWhenFull, appLogger)
	scheduler.Start()

	s := server.NewServer(cfg, psqlDB, redisClient, s3Client, scheduler, appLogger)
	if err = s.Run(); err != nil {
		appLogger.Fatalf("could not start server: %s", err)
	}
}
