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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/Schoggi0815/spellhaven/world"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is read from config.toml, or from YAML when the file name says so.
type Config struct {
	// World layout
	MaxLod     int     `toml:"max-lod" yaml:"max-lod"`
	ChunkSize  int32   `toml:"chunk-size" yaml:"chunk-size"`     // voxels
	VoxelSize  float64 `toml:"voxel-size" yaml:"voxel-size"`     // world units
	RegionSize int32   `toml:"region-size" yaml:"region-size"`   // voxels

	// Generation
	Seed          int64 `toml:"seed" yaml:"seed"`
	GeneratePaths bool  `toml:"generate-paths" yaml:"generate-paths"`
	PathCellSize  int32 `toml:"path-cell-size" yaml:"path-cell-size"` // voxels

	// Scheduling
	TickRate         duration `toml:"tick-rate" yaml:"tick-rate"`
	ChunkWorkers     int      `toml:"chunk-workers" yaml:"chunk-workers"`
	RegionWorkers    int      `toml:"region-workers" yaml:"region-workers"`
	QueueSize        int      `toml:"queue-size" yaml:"queue-size"`
	MaxChunkTasks    int      `toml:"max-chunk-tasks" yaml:"max-chunk-tasks"`
	ChunkTaskLimiter Limiter  `toml:"chunk-task-limiter" yaml:"chunk-task-limiter"`

	Loader     LoaderConfig      `toml:"loader" yaml:"loader"`
	Viewpoints []ViewpointConfig `toml:"viewpoint" yaml:"viewpoints"`

	// Serve Prometheus metrics here when set, e.g. "127.0.0.1:9100".
	MetricsAddress string `toml:"metrics-address" yaml:"metrics-address"`
}

// LoaderConfig is the chunk loader given to every viewpoint.
type LoaderConfig struct {
	LoadRange     int32     `toml:"load-range" yaml:"load-range"`           // trees
	UnloadRange   int32     `toml:"unload-range" yaml:"unload-range"`       // trees
	LodRange      []float64 `toml:"lod-range" yaml:"lod-range"`             // full-detail chunks per level
	FastMoveSpeed float64   `toml:"fast-move-speed" yaml:"fast-move-speed"` // world units per second
	FastMoveLod   int       `toml:"fast-move-lod" yaml:"fast-move-lod"`
}

// ViewpointConfig places a scripted camera.
type ViewpointConfig struct {
	Name     string     `toml:"name" yaml:"name"`
	Position [3]float64 `toml:"position" yaml:"position"`
	Velocity [3]float64 `toml:"velocity" yaml:"velocity"`
}

// DefaultConfig is the configuration written by tools/create_config.
func DefaultConfig() Config {
	layout := world.DefaultLayout()
	return Config{
		MaxLod:           int(layout.MaxLod),
		ChunkSize:        layout.ChunkSize,
		VoxelSize:        layout.VoxelSize,
		RegionSize:       layout.RegionSize,
		Seed:             1,
		GeneratePaths:    true,
		PathCellSize:     64,
		TickRate:         duration{50 * time.Millisecond},
		ChunkWorkers:     6,
		RegionWorkers:    4,
		QueueSize:        64,
		MaxChunkTasks:    20,
		ChunkTaskLimiter: Limiter{Every: duration{5 * time.Millisecond}, N: 20},
		Loader: LoaderConfig{
			LoadRange:     4,
			UnloadRange:   5,
			LodRange:      []float64{2, 4, 8, 16, 32, 64, 128, 256},
			FastMoveSpeed: 30,
			FastMoveLod:   int(world.LodHalf),
		},
		Viewpoints: []ViewpointConfig{{Name: "spawn", Position: [3]float64{0, 100, 0}}},
	}
}

// ReadConfig decodes path over DefaultConfig. Keys the Config does not know
// are an error in both syntaxes.
func ReadConfig(path string) (Config, error) {
	c := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return Config{}, err
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		meta, err := toml.DecodeFile(path, &c)
		if err != nil {
			return Config{}, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			var err errUnknownConfig
			for _, key := range undecoded {
				err = append(err, key.String())
			}
			return Config{}, err
		}
	}
	return c, c.Validate()
}

type errUnknownConfig []string

func (e errUnknownConfig) Error() string {
	return "unknown config keys: [" + strings.Join(e, ", ") + "]"
}

// Validate rejects values the world cannot run with.
func (c *Config) Validate() error {
	check := func(ok bool, format string, args ...any) error {
		if ok {
			return nil
		}
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
	}
	if err := errors.Join(
		check(c.MaxLod >= 1 && c.MaxLod <= 16, "max-lod %d not in [1, 16]", c.MaxLod),
		check(c.ChunkSize > 0, "chunk-size must be positive"),
		check(c.VoxelSize > 0, "voxel-size must be positive"),
		check(c.RegionSize >= 4, "region-size %d too small", c.RegionSize),
		check(c.PathCellSize > 0, "path-cell-size must be positive"),
		check(c.TickRate.Duration > 0, "tick-rate must be positive"),
		check(c.MaxChunkTasks > 0, "max-chunk-tasks must be positive"),
		check(c.Loader.LoadRange >= 0, "load-range must not be negative"),
		check(c.Loader.FastMoveLod >= 0 && c.Loader.FastMoveLod <= c.MaxLod, "fast-move-lod %d not in [0, max-lod]", c.Loader.FastMoveLod),
	); err != nil {
		return err
	}
	if layout := c.Layout(); !layout.RegionsAlignToTrees() {
		return fmt.Errorf("%w: region-size %d is not a multiple of the tree size %d",
			ErrInvalidConfig, c.RegionSize, layout.TreeVoxels())
	}
	for i := 1; i < len(c.Loader.LodRange); i++ {
		if c.Loader.LodRange[i] <= c.Loader.LodRange[i-1] {
			return fmt.Errorf("%w: lod-range must be strictly increasing", ErrInvalidConfig)
		}
	}
	return nil
}

// Layout converts the layout section.
func (c *Config) Layout() world.Layout {
	return world.Layout{
		MaxLod:     world.Lod(c.MaxLod),
		ChunkSize:  c.ChunkSize,
		VoxelSize:  c.VoxelSize,
		RegionSize: c.RegionSize,
	}
}

// WorldOptions builds the options for world.New.
func (c *Config) WorldOptions() world.Options {
	layout := c.Layout()
	noise := world.NewPerlinTerrain(c.Seed)
	return world.Options{
		Layout: layout,
		Generation: world.GenerationOptions{
			Seed:          c.Seed,
			GeneratePaths: c.GeneratePaths,
			Layout:        layout,
			Noise:         noise,
			Planner:       world.NewAStarPlanner(noise, c.PathCellSize),
			Structures:    world.DefaultStructures(),
		},
		TickRate:      c.TickRate.Duration,
		ChunkWorkers:  c.ChunkWorkers,
		RegionWorkers: c.RegionWorkers,
		QueueSize:     c.QueueSize,
		MaxChunkTasks: c.MaxChunkTasks,
		ChunkLimiter:  c.ChunkTaskLimiter.Limiter(),
	}
}

// ChunkLoader converts the loader section; lod-range is given in chunks.
func (c *Config) ChunkLoader() world.ChunkLoader {
	chunk := c.Layout().ChunkWorldSize()
	reach := make([]float64, len(c.Loader.LodRange))
	for i, r := range c.Loader.LodRange {
		reach[i] = r * chunk
	}
	return world.ChunkLoader{
		LoadRange:     c.Loader.LoadRange,
		UnloadRange:   c.Loader.UnloadRange,
		LodRange:      reach,
		FastMoveSpeed: c.Loader.FastMoveSpeed,
		FastMoveLod:   world.Lod(c.Loader.FastMoveLod),
	}
}

func (v ViewpointConfig) vectors() (pos, vel mgl64.Vec3) {
	return mgl64.Vec3(v.Position), mgl64.Vec3(v.Velocity)
}

// Limiter allows N events every Every. A zero Every means no limit.
type Limiter struct {
	Every duration `toml:"every" yaml:"every"`
	N     int      `toml:"n" yaml:"n"`
}

func (l *Limiter) Limiter() *rate.Limiter {
	if l.Every.Duration <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(l.Every.Duration), l.N)
}

// duration reads "50ms" style strings from either syntax.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

func (d duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}
