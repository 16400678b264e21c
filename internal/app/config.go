package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	RigPath   string // empty selects the builtin rig
	Workspace string // overrides the rig's workspace root

	Vars     []string // -var name=value, applied after var files
	VarFiles []string // -var-file YAML paths, in order

	DryRun    bool
	Overwrite bool
	Retries   int
	Report    string

	LogFormat  string
	LogLevel   string
	StatusPort int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.Retries < 0 {
		return nil, errors.New("retries cannot be negative")
	}
	if cfg.StatusPort < 0 || cfg.StatusPort > 65535 {
		return nil, errors.New("status-port must be between 0 and 65535")
	}

	return &cfg, nil
}
