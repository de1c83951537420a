// Copyright (c) 2026 The effectvm Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package vmconfig loads the tunables effectvm.Options exposes for VM
// construction from YAML, the way MongooseMoo-barn/conformance and
// wudi-hey's fpm config load their own settings from file.
package vmconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds VM construction tunables: how much arena/queue capacity to
// pre-allocate, and whether to run with tracing on.
type Config struct {
	Arena     ArenaConfig     `yaml:"arena"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Trace     bool            `yaml:"trace"`
	LogLevel  string          `yaml:"log_level"`
}

// ArenaConfig sizes the segment arena's initial backing store.
type ArenaConfig struct {
	// InitialSegments is the number of segment slots preallocated before
	// the arena's free list starts growing on demand.
	InitialSegments int `yaml:"initial_segments"`
}

// SchedulerConfig sizes the cooperative scheduler's bookkeeping.
type SchedulerConfig struct {
	// ReadyQueueCapacity preallocates the scheduler's ready-task queue.
	ReadyQueueCapacity int `yaml:"ready_queue_capacity"`
	// DeadlockGracePeriod is currently unused by the synchronous Run loop
	// (a deadlock is detected the instant no task is ready and no promise
	// is pending) but is read by AsyncRun callers that want to wait this
	// long for an external FeedPromise before giving up and treating an
	// AwaitingExternal stall as a deadlock themselves.
	DeadlockGracePeriod time.Duration `yaml:"deadlock_grace_period"`
}

// Default returns the configuration used when Options.Config is nil:
// conservative preallocation sizes matching newVM's previous hardcoded
// arena size of 8.
func Default() *Config {
	return &Config{
		Arena:     ArenaConfig{InitialSegments: 8},
		Scheduler: SchedulerConfig{ReadyQueueCapacity: 16},
		LogLevel:  "info",
	}
}

// Load reads and parses a YAML config file at path, filling any field left
// zero with Default()'s value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vmconfig: reading %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("vmconfig: parsing %s: %w", path, err)
	}
	if cfg.Arena.InitialSegments <= 0 {
		cfg.Arena.InitialSegments = Default().Arena.InitialSegments
	}
	if cfg.Scheduler.ReadyQueueCapacity <= 0 {
		cfg.Scheduler.ReadyQueueCapacity = Default().Scheduler.ReadyQueueCapacity
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = Default().LogLevel
	}
	return cfg, nil
}
