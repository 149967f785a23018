// Package config loads and saves the player's YAML settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/cbegin/seqplay-go/internal/automation"
	"github.com/cbegin/seqplay-go/internal/synth"
)

type Compaction struct {
	PitchBend  automation.Params `yaml:"pitch_bend"`
	Controller automation.Params `yaml:"controller"`
}

type Server struct {
	Addr string `yaml:"addr"` // e.g. :8080
	// PositionHz is how often the websocket pushes the transport position.
	PositionHz int `yaml:"position_hz"`
}

type Config struct {
	SampleRate int     `yaml:"sample_rate"`
	PageBars   float64 `yaml:"page_bars"`
	MasterGain float64 `yaml:"master_gain"`
	LogLevel   string  `yaml:"log_level"` // debug | info | warn | error

	Compaction Compaction   `yaml:"compaction"`
	Synth      synth.Params `yaml:"synth"`
	Server     Server       `yaml:"server"`
}

func Default() *Config {
	return &Config{
		SampleRate: 48000,
		PageBars:   4,
		MasterGain: 0.3,
		LogLevel:   "info",
		Compaction: Compaction{
			PitchBend:  automation.PitchBendParams(),
			Controller: automation.ControllerParams(),
		},
		Synth:  synth.DefaultParams(),
		Server: Server{Addr: ":8080", PositionHz: 20},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	c.sanitize()
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func (c *Config) sanitize() {
	d := Default()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if !(c.PageBars > 0) {
		c.PageBars = d.PageBars
	}
	if c.MasterGain < 0 {
		c.MasterGain = 0
	}
	if !(c.Compaction.PitchBend.MinInterval >= 0) {
		c.Compaction.PitchBend = d.Compaction.PitchBend
	}
	if !(c.Compaction.Controller.MinInterval >= 0) {
		c.Compaction.Controller = d.Compaction.Controller
	}
	if c.Synth.Voices <= 0 {
		c.Synth.Voices = d.Synth.Voices
	}
	if c.Server.PositionHz <= 0 {
		c.Server.PositionHz = d.Server.PositionHz
	}
}
