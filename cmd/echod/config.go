package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/server"
)

type flags struct {
	Listen      string        `json:"listen"`
	Workers     int           `json:"workers"`
	QueueDepth  int           `json:"queue_depth"`
	Policy      string        `json:"policy"`
	BufferSize  int           `json:"buffer_size"`
	MaxConns    int           `json:"max_conns"`
	WaitTimeout time.Duration `json:"-"`
	WaitString  string        `json:"wait_timeout"`
	Shutdown    string        `json:"shutdown"`
	PinWorkers  bool          `json:"pin_workers"`
	LogLevel    string        `json:"log_level"`
	ConfigFile  string        `json:"-"`
}

// buildConfig layers the configuration file under the command line: a value
// from the file applies only when the matching flag was not set explicitly.
func buildConfig(cmd *cobra.Command, f *flags) (*server.Config, error) {
	if f.ConfigFile != "" {
		content, err := os.ReadFile(f.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		file := new(flags)
		if err := json.Unmarshal(content, file); err != nil {
			return nil, fmt.Errorf("decode config file: %w", err)
		}
		if file.WaitString != "" {
			file.WaitTimeout, err = time.ParseDuration(file.WaitString)
			if err != nil {
				return nil, fmt.Errorf("decode config file: wait_timeout: %w", err)
			}
		}
		merge(cmd, f, file)
	}

	policy, err := api.ParseSubmitPolicy(f.Policy)
	if err != nil {
		return nil, err
	}
	mode, err := api.ParseShutdownMode(f.Shutdown)
	if err != nil {
		return nil, err
	}
	cfg := server.DefaultConfig()
	cfg.ListenAddr = f.Listen
	cfg.Workers = f.Workers
	cfg.QueueDepth = f.QueueDepth
	cfg.SubmitPolicy = policy
	cfg.BufferSize = f.BufferSize
	cfg.MaxConnections = f.MaxConns
	cfg.WaitTimeout = f.WaitTimeout
	cfg.ShutdownMode = mode
	cfg.PinWorkers = f.PinWorkers
	cfg.LogLevel = f.LogLevel
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func merge(cmd *cobra.Command, f, file *flags) {
	unset := func(name string) bool {
		return !cmd.Flags().Changed(name)
	}
	if file.Listen != "" && unset("listen") {
		f.Listen = file.Listen
	}
	if file.Workers != 0 && unset("workers") {
		f.Workers = file.Workers
	}
	if file.QueueDepth != 0 && unset("queue-depth") {
		f.QueueDepth = file.QueueDepth
	}
	if file.Policy != "" && unset("policy") {
		f.Policy = file.Policy
	}
	if file.BufferSize != 0 && unset("buffer-size") {
		f.BufferSize = file.BufferSize
	}
	if file.MaxConns != 0 && unset("max-conns") {
		f.MaxConns = file.MaxConns
	}
	if file.WaitTimeout != 0 && unset("wait-timeout") {
		f.WaitTimeout = file.WaitTimeout
	}
	if file.Shutdown != "" && unset("shutdown") {
		f.Shutdown = file.Shutdown
	}
	if file.PinWorkers && unset("pin-workers") {
		f.PinWorkers = true
	}
	if file.LogLevel != "" && unset("log-level") {
		f.LogLevel = file.LogLevel
	}
}
