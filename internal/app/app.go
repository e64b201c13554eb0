// Package app assembles the detection components from configuration
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/raaihank/trace-sentinel/internal/config"
	"github.com/raaihank/trace-sentinel/internal/jsonscan"
	"github.com/raaihank/trace-sentinel/internal/logger"
	"github.com/raaihank/trace-sentinel/internal/metrics"
	"github.com/raaihank/trace-sentinel/internal/privacy"
	"github.com/raaihank/trace-sentinel/internal/recorder"
	"github.com/raaihank/trace-sentinel/internal/spanscan"
	"github.com/raaihank/trace-sentinel/internal/whitelist"
	"github.com/raaihank/trace-sentinel/internal/xmlscan"
	"go.uber.org/zap"
)

// Components holds every detection component built for one process
type Components struct {
	Engine   *privacy.Engine
	Metrics  *metrics.Collector
	Recorder *recorder.Recorder

	SpanWhitelist *whitelist.Cache
	JSONWhitelist *whitelist.Cache
	XMLWhitelist  *whitelist.Cache

	Spans  *spanscan.Detector
	Masker *spanscan.Masker
	JSON   *jsonscan.Detector
	XML    *xmlscan.Detector

	source whitelist.Source
	logger *logger.Logger
}

// New builds the components. The three whitelist caches share one source,
// each consuming only the lines tagged with its kind.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Components, error) {
	collector := metrics.NewCollector(log.WithComponent("metrics").Logger, cfg.Application.Name, cfg.Application.Subsystem)

	engine := privacy.New(cfg.Detection, log.WithComponent("privacy"), privacy.WithTimer(collector))

	wlLog := log.WithComponent("whitelist")
	source, err := whitelist.NewSource(ctx, cfg.Whitelist, wlLog.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create whitelist source: %w", err)
	}

	newCache := func(kind whitelist.Kind) *whitelist.Cache {
		return whitelist.NewCache(kind, source, wlLog.Logger,
			whitelist.WithTTL(cfg.Whitelist.TTL),
			whitelist.WithFetchTimeout(cfg.Whitelist.FetchTimeout),
			whitelist.WithObserver(collector),
		)
	}

	c := &Components{
		Engine:        engine,
		Metrics:       collector,
		SpanWhitelist: newCache(whitelist.KindSpan),
		JSONWhitelist: newCache(whitelist.KindJSON),
		XMLWhitelist:  newCache(whitelist.KindXML),
		source:        source,
		logger:        log,
	}

	var rec spanscan.Recorder
	if cfg.Recorder.Enabled {
		c.Recorder = recorder.New(log.WithComponent("recorder").Logger, recorder.WithInterval(cfg.Recorder.Interval))
		rec = c.Recorder
	}

	c.Spans = spanscan.NewDetector(engine, c.SpanWhitelist, collector, cfg.Detection.LogFinders, log.WithComponent("spanscan").Logger)
	c.Masker = spanscan.NewMasker(c.Spans, collector, rec, cfg.Masking.Placeholder)
	c.JSON = jsonscan.NewDetector(engine, c.JSONWhitelist, log.WithComponent("jsonscan").Logger)
	c.XML = xmlscan.NewDetector(engine, c.XMLWhitelist, log.WithComponent("xmlscan").Logger)

	return c, nil
}

// WhitelistEntries returns the number of entries across the three caches
func (c *Components) WhitelistEntries() int {
	return c.SpanWhitelist.Snapshot().Len() + c.JSONWhitelist.Snapshot().Len() + c.XMLWhitelist.Snapshot().Len()
}

// Close flushes the recorder and releases the whitelist source
func (c *Components) Close() error {
	if c.Recorder != nil {
		c.Recorder.Flush()
	}
	if closer, ok := c.source.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.logger.Warn("Failed to close whitelist source", zap.Error(err))
			return err
		}
	}
	return nil
}
