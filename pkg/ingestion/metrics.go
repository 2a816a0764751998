// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsIngestion holds Prometheus metrics for the mining pipeline.
type metricsIngestion struct {
	once sync.Once

	// Loading and sampling
	filesLoaded       prometheus.Counter
	decodeErrors      prometheus.Counter
	binaryBlobs       prometheus.Counter
	samplerRoundTrips prometheus.Counter

	// Extraction and templating
	statementsExtracted prometheus.Counter
	lexErrors           prometheus.Counter
	parseErrors         prometheus.Counter
	templatesFiltered   prometheus.Counter
	templatesFormalized prometheus.Counter
	templatesStored     prometheus.Counter

	// Repositories
	reposSucceeded prometheus.Counter
	reposFailed    prometheus.Counter

	// Durations
	stageDuration *prometheus.HistogramVec
	totalDuration prometheus.Histogram
}

var ingMetrics metricsIngestion

func (m *metricsIngestion) init() {
	m.once.Do(func() {
		m.filesLoaded = prometheus.NewCounter(prometheus.CounterOpts{Name: "logmine_files_loaded_total", Help: "Source files decoded and handed to extraction"})
		m.decodeErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "logmine_decode_errors_total", Help: "Files no configured encoding could decode"})
		m.binaryBlobs = prometheus.NewCounter(prometheus.CounterOpts{Name: "logmine_binary_blobs_total", Help: "Sampled blobs skipped as binary"})
		m.samplerRoundTrips = prometheus.NewCounter(prometheus.CounterOpts{Name: "logmine_sampler_round_trips_total", Help: "Remote tree and blob requests issued by the sampler"})

		m.statementsExtracted = prometheus.NewCounter(prometheus.CounterOpts{Name: "logmine_statements_extracted_total", Help: "Logging call-sites found by the boundary scanner"})
		m.lexErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "logmine_lex_errors_total", Help: "Statements dropped on a lexer error"})
		m.parseErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "logmine_parse_errors_total", Help: "Statements dropped on a parser error"})
		m.templatesFiltered = prometheus.NewCounter(prometheus.CounterOpts{Name: "logmine_templates_filtered_total", Help: "Templates rejected by the validity filter"})
		m.templatesFormalized = prometheus.NewCounter(prometheus.CounterOpts{Name: "logmine_templates_formalized_total", Help: "Templates emitted by the formalizer"})
		m.templatesStored = prometheus.NewCounter(prometheus.CounterOpts{Name: "logmine_templates_stored_total", Help: "Template rows inserted"})

		m.reposSucceeded = prometheus.NewCounter(prometheus.CounterOpts{Name: "logmine_repositories_succeeded_total", Help: "Repositories that produced templates"})
		m.reposFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "logmine_repositories_failed_total", Help: "Repositories that failed or produced nothing"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
		m.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "logmine_stage_seconds", Help: "Duration of each pipeline stage", Buckets: buckets}, []string{"stage"})
		m.totalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "logmine_run_seconds", Help: "Duration of a whole repository run", Buckets: buckets})

		prometheus.MustRegister(
			m.filesLoaded, m.decodeErrors, m.binaryBlobs, m.samplerRoundTrips,
			m.statementsExtracted, m.lexErrors, m.parseErrors,
			m.templatesFiltered, m.templatesFormalized, m.templatesStored,
			m.reposSucceeded, m.reposFailed,
			m.stageDuration, m.totalDuration,
		)
	})
}

// record helpers - used by the pipeline for metrics tracking
func recordDecodeError() { ingMetrics.init(); ingMetrics.decodeErrors.Inc() }

func recordStage(stage string, d time.Duration) {
	ingMetrics.init()
	ingMetrics.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func recordRun(res *Result, d time.Duration) {
	ingMetrics.init()
	ingMetrics.totalDuration.Observe(d.Seconds())
	ingMetrics.filesLoaded.Add(float64(res.FilesLoaded))
	ingMetrics.binaryBlobs.Add(float64(res.SamplerStats.Binary))
	ingMetrics.samplerRoundTrips.Add(float64(res.SamplerStats.RoundTrips))
	ingMetrics.statementsExtracted.Add(float64(res.Extract.Statements))
	ingMetrics.lexErrors.Add(float64(res.LexErrors))
	ingMetrics.parseErrors.Add(float64(res.ParseErrors))
	ingMetrics.templatesFiltered.Add(float64(res.Filtered))
	ingMetrics.templatesFormalized.Add(float64(res.Formalize.Output))
	ingMetrics.templatesStored.Add(float64(res.Stored))
	if res.Err == nil {
		ingMetrics.reposSucceeded.Inc()
	} else {
		ingMetrics.reposFailed.Inc()
	}
}
