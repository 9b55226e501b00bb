// This file is part of go-mc/server project.
// Copyright (C) 2023.  Tnze
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package game

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadConfig_TOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
seed = 7
tick-rate = "20ms"

[chunk-task-limiter]
every = "1s"
n = 3

[loader]
load-range = 2
lod-range = [1.0, 2.0, 4.0]

[[viewpoint]]
name = "a"
position = [1.0, 2.0, 3.0]
`)
	c, err := ReadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Seed != 7 || c.TickRate.Duration != 20*time.Millisecond {
		t.Errorf("seed = %d tick = %v", c.Seed, c.TickRate)
	}
	if c.ChunkTaskLimiter.Every.Duration != time.Second || c.ChunkTaskLimiter.N != 3 {
		t.Errorf("limiter = %+v", c.ChunkTaskLimiter)
	}
	// Unset keys keep their defaults.
	if c.ChunkSize != DefaultConfig().ChunkSize {
		t.Errorf("chunk-size = %d", c.ChunkSize)
	}
	if len(c.Viewpoints) != 1 || c.Viewpoints[0].Position != [3]float64{1, 2, 3} {
		t.Errorf("viewpoints = %+v", c.Viewpoints)
	}

	loader := c.ChunkLoader()
	chunk := c.Layout().ChunkWorldSize()
	if len(loader.LodRange) != 3 || loader.LodRange[2] != 4*chunk {
		t.Errorf("lod range = %v", loader.LodRange)
	}
}

func TestReadConfig_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
seed: 9
generate-paths: false
tick-rate: 100ms
viewpoints:
  - name: b
    velocity: [5, 0, 0]
`)
	c, err := ReadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Seed != 9 || c.GeneratePaths || c.TickRate.Duration != 100*time.Millisecond {
		t.Errorf("config = %+v", c)
	}
	if len(c.Viewpoints) != 1 || c.Viewpoints[0].Velocity[0] != 5 {
		t.Errorf("viewpoints = %+v", c.Viewpoints)
	}
}

func TestReadConfig_UnknownKeys(t *testing.T) {
	if _, err := ReadConfig(writeFile(t, "c.toml", "seed = 1\nsead = 2\n")); err == nil {
		t.Error("toml: unknown key accepted")
	} else {
		var unknown errUnknownConfig
		if !errors.As(err, &unknown) || len(unknown) != 1 || unknown[0] != "sead" {
			t.Errorf("toml: err = %v", err)
		}
	}
	if _, err := ReadConfig(writeFile(t, "c.yml", "seed: 1\nsead: 2\n")); err == nil {
		t.Error("yaml: unknown key accepted")
	}
}

func TestConfig_Validate(t *testing.T) {
	c := DefaultConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}

	for name, mutate := range map[string]func(*Config){
		"max-lod":   func(c *Config) { c.MaxLod = 0 },
		"chunk":     func(c *Config) { c.ChunkSize = 0 },
		"tick":      func(c *Config) { c.TickRate.Duration = 0 },
		"lod-range": func(c *Config) { c.Loader.LodRange = []float64{4, 2} },
		"fast-move": func(c *Config) { c.Loader.FastMoveLod = 99 },
		"region":    func(c *Config) { c.RegionSize = 3 * c.RegionSize / 4 },
	} {
		c := DefaultConfig()
		mutate(&c)
		if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestDefaultConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := toml.NewEncoder(f).Encode(DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	f.Close()

	c, err := ReadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.TickRate != DefaultConfig().TickRate || c.Loader.FastMoveSpeed != DefaultConfig().Loader.FastMoveSpeed {
		t.Errorf("read back %+v", c)
	}
}

func TestLimiter(t *testing.T) {
	if l := (&Limiter{}).Limiter(); !l.Allow() || !l.Allow() {
		t.Error("zero limiter throttles")
	}
	l := (&Limiter{Every: duration{time.Hour}, N: 1}).Limiter()
	if !l.Allow() || l.Allow() {
		t.Error("limiter burst")
	}
}
