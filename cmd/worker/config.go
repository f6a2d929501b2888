package main

import (
	"log"

	"receiptflow/internal/config"
)

// Config holds the worker's own runtime settings, layered on top of the
// shared config.Config the container already loaded.
type Config struct {
	RedisAddr string
	Job       config.JobConfig
}

func loadConfig(cfg *config.Config) *Config {
	wc := &Config{
		RedisAddr: cfg.Redis.Host,
		Job:       cfg.Job,
	}

	log.Printf("worker config: redis=%s", wc.RedisAddr)
	return wc
}
