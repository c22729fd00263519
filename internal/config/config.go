// Package config reads the engines.toml file that declares which UCCI
// engine binaries are available and how to launch them. The file is read
// once at startup; sessions never re-read it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"xiangqi/internal/engine"
)

// FileName is looked up in the standard locations, in order: the current
// directory, the executable's directory, the user config directory
// (xiangqi/), and /etc/xiangqi.
const FileName = "engines.toml"

var validate = validator.New()

// Engine is one engine declaration.
type Engine struct {
	Name         string            `toml:"name" validate:"required"`
	Protocol     string            `toml:"protocol" validate:"required,oneof=ucci"`
	Path         string            `toml:"path" validate:"required"`
	WorkDir      string            `toml:"workdir"`
	Options      map[string]string `toml:"options"`
	GraceTimeout int               `toml:"grace_timeout_ms" validate:"omitempty,min=100,max=60000"`
}

type defaults struct {
	Name string `toml:"name" validate:"required"`
}

type file struct {
	Default defaults          `toml:"default"`
	Engines map[string]Engine `toml:"engines" validate:"required,min=1"`
}

// Config holds the parsed engine declarations.
type Config struct {
	Default string
	Engines map[string]Engine
}

// Find locates engines.toml in the standard locations.
func Find() (string, error) {
	if _, err := os.Stat(FileName); err == nil {
		return FileName, nil
	}

	if exe, err := os.Executable(); err == nil {
		p := filepath.Join(filepath.Dir(exe), FileName)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if dir, err := os.UserConfigDir(); err == nil {
		p := filepath.Join(dir, "xiangqi", FileName)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	p := filepath.Join("/etc/xiangqi", FileName)
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}

	return "", fmt.Errorf("no %s found in any standard location", FileName)
}

// Load parses and validates one engines.toml.
func Load(path string) (*Config, error) {
	var f file
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	for key, e := range f.Engines {
		if err := validate.Struct(&e); err != nil {
			return nil, fmt.Errorf("invalid engine %q in %s: %w", key, path, err)
		}
	}

	if _, ok := f.Engines[f.Default.Name]; !ok {
		return nil, fmt.Errorf("default engine %q is not declared in %s", f.Default.Name, path)
	}

	return &Config{Default: f.Default.Name, Engines: f.Engines}, nil
}

// FindAndLoad is Find followed by Load.
func FindAndLoad() (*Config, error) {
	path, err := Find()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Names lists the declared engine names, default first.
func (c *Config) Names() []string {
	names := []string{c.Default}
	for name := range c.Engines {
		if name != c.Default {
			names = append(names, name)
		}
	}
	return names
}

// SessionConfig resolves one declared engine into a session config. An
// empty name selects the default engine. Paths may start with an
// environment variable reference ($ENGINES/eleeye/eleeye).
func (c *Config) SessionConfig(name string) (engine.Config, error) {
	if name == "" {
		name = c.Default
	}
	e, ok := c.Engines[name]
	if !ok {
		return engine.Config{}, fmt.Errorf("unknown engine %q", name)
	}

	path, err := resolvePath(e.Path)
	if err != nil {
		return engine.Config{}, err
	}
	workDir := e.WorkDir
	if workDir == "" {
		// Auxiliary book/weight files usually sit next to the binary.
		workDir = filepath.Dir(path)
	}

	cfg := engine.Config{
		Name:    name,
		Path:    path,
		WorkDir: workDir,
		Options: e.Options,
	}
	if e.GraceTimeout > 0 {
		cfg.GraceTimeout = time.Duration(e.GraceTimeout) * time.Millisecond
	}
	return cfg, nil
}

// resolvePath expands a leading $VAR path segment from the environment.
func resolvePath(path string) (string, error) {
	if !strings.HasPrefix(path, "$") {
		return path, nil
	}
	parts := strings.SplitN(path, string(filepath.Separator), 2)
	name := strings.TrimPrefix(parts[0], "$")
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	if len(parts) == 1 {
		return value, nil
	}
	return filepath.Join(value, parts[1]), nil
}
