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

package world

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spellhaven_cache_lookups_total",
		Help: "Generation cache lookups by cache and result",
	}, []string{"cache", "result"}) // hit, generated, waited, failed

	cacheGenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spellhaven_cache_generation_duration_seconds",
		Help:    "Time spent inside cache generator functions",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"cache"})

	poolQueued = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spellhaven_task_pool_queued",
		Help: "Tasks waiting for a worker",
	}, []string{"pool"})

	poolCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spellhaven_task_pool_completed_total",
		Help: "Tasks finished by result",
	}, []string{"pool", "result"}) // ok, panic

	chunkNodes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "spellhaven_chunk_nodes",
		Help: "Quad-tree nodes by state",
	}, []string{"state"})

	chunkTrees = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spellhaven_chunk_trees",
		Help: "Loaded quad-tree roots",
	})

	chunkTasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spellhaven_chunk_tasks_in_flight",
		Help: "Chunk generation tasks queued or running",
	})
)
