// Package metrics instruments gateway calls and HTTP requests with Prometheus.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-manage/pkg/managecms"
)

// Outcome labels
const (
	OutcomeOK         = "ok"
	OutcomeNotFound   = "not_found"
	OutcomeValidation = "validation"
	OutcomePermission = "permission"
	OutcomeConflict   = "conflict"
	OutcomeError      = "error"
)

// Outcome classifies err into one of the outcome labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, managecms.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, managecms.ErrValidation):
		return OutcomeValidation
	case errors.Is(err, managecms.ErrPermission):
		return OutcomePermission
	case errors.Is(err, managecms.ErrVersionConflict):
		return OutcomeConflict
	default:
		return OutcomeError
	}
}

// Gateway wraps a managecms.Gateway and records every call.
type Gateway struct {
	next     managecms.Gateway
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewGateway registers the gateway collectors on reg (the default registerer
// when nil) and returns the instrumented gateway.
func NewGateway(next managecms.Gateway, reg prometheus.Registerer) (*Gateway, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	g := &Gateway{
		next: next,
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "manage",
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Gateway calls by operation and outcome",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "manage",
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Gateway call latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}

	for _, c := range []prometheus.Collector{g.calls, g.duration} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, err
			}
			// Reuse the collector registered by an earlier gateway.
			switch existing := already.ExistingCollector.(type) {
			case *prometheus.CounterVec:
				g.calls = existing
			case *prometheus.HistogramVec:
				g.duration = existing
			}
		}
	}
	return g, nil
}

func (g *Gateway) observe(op managecms.MutationOp, start time.Time, err error) {
	g.duration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
	g.calls.WithLabelValues(string(op), Outcome(err)).Inc()
}

func (g *Gateway) UpdateField(ctx context.Context, mc managecms.MutationContext, id managecms.ContentID, field managecms.FieldType, value managecms.FieldValue) error {
	start := time.Now()
	err := g.next.UpdateField(ctx, mc, id, field, value)
	g.observe(managecms.OpUpdateField, start, err)
	return err
}

func (g *Gateway) CopyField(ctx context.Context, mc managecms.MutationContext, id managecms.ContentID, field managecms.FieldType, from managecms.Locale, onlyIfTargetEmpty bool) error {
	start := time.Now()
	err := g.next.CopyField(ctx, mc, id, field, from, onlyIfTargetEmpty)
	g.observe(managecms.OpCopyField, start, err)
	return err
}

func (g *Gateway) CopyAssetFile(ctx context.Context, mc managecms.MutationContext, id managecms.AssetID, from managecms.Locale) error {
	start := time.Now()
	err := g.next.CopyAssetFile(ctx, mc, id, from)
	g.observe(managecms.OpCopyAssetFile, start, err)
	return err
}

func (g *Gateway) RemoveAssetFile(ctx context.Context, mc managecms.MutationContext, id managecms.AssetID) error {
	start := time.Now()
	err := g.next.RemoveAssetFile(ctx, mc, id)
	g.observe(managecms.OpRemoveAssetFile, start, err)
	return err
}
