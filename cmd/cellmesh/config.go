package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the CLI's own flags, loaded from a YAML file given via
// --config. Flags explicitly passed on the command line always take
// precedence over the same setting found in the file; fileConfig only ever
// fills in values the user didn't pass.
type fileConfig struct {
	Remoting       string `yaml:"remoting"`
	Name           string `yaml:"name"`
	Supervise      string `yaml:"supervise"`
	KeepRunning    bool   `yaml:"keep_running"`
	Admin          bool   `yaml:"admin"`
	Transport      string `yaml:"transport"`
	LogDir         string `yaml:"log_dir"`
	MaxLogFiles    int    `yaml:"max_log_files"`
	MaxLogFileSize int    `yaml:"max_log_file_size"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return &cfg, nil
}
