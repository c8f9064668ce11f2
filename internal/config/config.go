package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sigreer/lsblkpro/internal/collector"
	"github.com/sigreer/lsblkpro/internal/db"
)

// Color modes
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

type Config struct {
	Display Display `yaml:"display"`
	Sources Sources `yaml:"sources"`
	History History `yaml:"history"`
}

// Display holds defaults for the table; command line flags are added on top
type Display struct {
	Include   []string `yaml:"include,omitempty"`
	Exclude   []string `yaml:"exclude,omitempty"`
	Sort      []string `yaml:"sort,omitempty"`
	Highlight string   `yaml:"highlight,omitempty"`
	ASCII     bool     `yaml:"ascii,omitempty"`
	// Color is "auto", "always" or "never"
	Color string `yaml:"color,omitempty"`
}

type Sources struct {
	SysRoot string `yaml:"sys_root,omitempty"`
	DevRoot string `yaml:"dev_root,omitempty"`
	Lsblk   string `yaml:"lsblk,omitempty"`

	// UdevRoot is read for alias kinds /dev/disk lacks; "none" skips it
	UdevRoot string `yaml:"udev_root,omitempty"`

	// ZpoolCommand is run to read pool topology; set Zpool to false to skip it
	ZpoolCommand []string `yaml:"zpool_command,omitempty"`
	Zpool        *bool    `yaml:"zpool,omitempty"`
}

type History struct {
	Path string `yaml:"path,omitempty"`
	// Keep prunes history to this many snapshots after each save; 0 keeps everything
	Keep int `yaml:"keep,omitempty"`
}

// defaultConfig reads the live system and keeps history under /var/lib
var defaultConfig = Config{
	Display: Display{
		Color: ColorAuto,
	},
	Sources: Sources{
		SysRoot:      collector.DefaultSysRoot,
		DevRoot:      collector.DefaultDevRoot,
		Lsblk:        "lsblk",
		UdevRoot:     collector.DefaultUdevRoot,
		ZpoolCommand: collector.DefaultZpoolCommand,
	},
	History: History{
		Path: db.DefaultPath,
	},
}

// Default returns a copy of the built-in configuration
func Default() *Config {
	cfg := defaultConfig
	cfg.Sources.ZpoolCommand = append([]string(nil), defaultConfig.Sources.ZpoolCommand...)
	return &cfg
}

// SearchPaths lists the files Load tries when no path is given
func SearchPaths() []string {
	paths := []string{"/etc/lsblkpro/config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config/lsblkpro/config.yaml"))
	}
	return append(paths, "config.yaml")
}

// Load reads path, or the first file in SearchPaths when path is empty.
// Missing values take their defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		for _, c := range SearchPaths() {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case explicit:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Display.Color == "" {
		c.Display.Color = def.Display.Color
	}
	if c.Sources.SysRoot == "" {
		c.Sources.SysRoot = def.Sources.SysRoot
	}
	if c.Sources.DevRoot == "" {
		c.Sources.DevRoot = def.Sources.DevRoot
	}
	if c.Sources.Lsblk == "" {
		c.Sources.Lsblk = def.Sources.Lsblk
	}
	if c.Sources.UdevRoot == "" {
		c.Sources.UdevRoot = def.Sources.UdevRoot
	}
	if len(c.Sources.ZpoolCommand) == 0 {
		c.Sources.ZpoolCommand = def.Sources.ZpoolCommand
	}
	if c.History.Path == "" {
		c.History.Path = def.History.Path
	}
}

// Validate rejects values no command could use
func (c *Config) Validate() error {
	switch c.Display.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("display.color must be auto, always or never, got %q", c.Display.Color)
	}
	if c.History.Keep < 0 {
		return fmt.Errorf("history.keep must not be negative")
	}
	return nil
}

// CollectorOptions turns the sources section into collector options
func (c *Config) CollectorOptions(all bool) collector.Options {
	opts := collector.Options{
		SysRoot:      c.Sources.SysRoot,
		DevRoot:      c.Sources.DevRoot,
		LsblkPath:    c.Sources.Lsblk,
		UdevRoot:     c.Sources.UdevRoot,
		All:          all,
		ZpoolCommand: c.Sources.ZpoolCommand,
	}
	if opts.UdevRoot == "none" {
		opts.UdevRoot = ""
	}
	if c.Sources.Zpool != nil && !*c.Sources.Zpool {
		opts.ZpoolCommand = nil
	}
	return opts
}
