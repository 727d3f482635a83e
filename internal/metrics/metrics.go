// Package metrics exposes edit run counters as Prometheus metrics and
// writes them to a node exporter textfile.
package metrics

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles the metrics of edit and spot-list runs.
type Collector struct {
	gatherer prometheus.Gatherer

	SpotsProcessed *prometheus.CounterVec
	SpotsDiscarded *prometheus.CounterVec
	Fields         prometheus.Gauge
	ScaleFactor    *prometheus.GaugeVec
	Particles      *prometheus.GaugeVec
}

// NewCollector registers the metrics against reg. A nil reg gets a fresh
// registry, so repeated runs in one process never collide.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	processed, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dicomfix_spots_processed_total",
		Help: "Spots on physical energy layers seen by the admission check.",
	}, []string{"field"}))
	if err != nil {
		return nil, err
	}
	discarded, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dicomfix_spots_discarded_total",
		Help: "Spots zeroed for falling below the minimum deliverable MU.",
	}, []string{"field"}))
	if err != nil {
		return nil, err
	}
	fields := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dicomfix_fields",
		Help: "Number of fields in the written plan.",
	})
	if err := reg.Register(fields); err != nil {
		return nil, fmt.Errorf("register dicomfix_fields: %w", err)
	}
	scale := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dicomfix_scale_factor",
		Help: "Weight scale factor applied to each field.",
	}, []string{"field"})
	if err := reg.Register(scale); err != nil {
		return nil, fmt.Errorf("register dicomfix_scale_factor: %w", err)
	}
	particles := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dicomfix_field_particles",
		Help: "Particles delivered by each field after conversion.",
	}, []string{"field"})
	if err := reg.Register(particles); err != nil {
		return nil, fmt.Errorf("register dicomfix_field_particles: %w", err)
	}

	return &Collector{
		gatherer:       gatherer,
		SpotsProcessed: processed,
		SpotsDiscarded: discarded,
		Fields:         fields,
		ScaleFactor:    scale,
		Particles:      particles,
	}, nil
}

// ObserveField records the admission outcome and scale factor of one field.
func (c *Collector) ObserveField(number, spots, discarded int, factor float64) {
	if c == nil {
		return
	}
	label := strconv.Itoa(number)
	c.SpotsProcessed.WithLabelValues(label).Add(float64(spots))
	c.SpotsDiscarded.WithLabelValues(label).Add(float64(discarded))
	c.ScaleFactor.WithLabelValues(label).Set(factor)
}

// ObserveParticles records the particle total of one field.
func (c *Collector) ObserveParticles(number int, n float64) {
	if c == nil {
		return
	}
	c.Particles.WithLabelValues(strconv.Itoa(number)).Set(n)
}

// WriteTextfile writes the current values in the text exposition format,
// atomically replacing path.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

func registerCounterVec(reg prometheus.Registerer, cv *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(cv); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register counter: %w", err)
	}
	return cv, nil
}
