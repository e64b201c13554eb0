// Package etl masks confidential data in span files
package etl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/raaihank/trace-sentinel/internal/config"
	"github.com/raaihank/trace-sentinel/internal/privacy"
	"github.com/raaihank/trace-sentinel/internal/spanscan"
	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

// Masker masks one span and reports what it found
type Masker interface {
	MaskWithFindings(span *spanscan.Span) (*spanscan.Span, privacy.Findings)
}

// Pipeline reads spans in batches, masks each batch on a worker pool and
// writes the masked spans as JSON lines in input order
type Pipeline struct {
	masker Masker
	config config.BatchConfig
	logger *zap.Logger
	stats  *ProcessingStats
	mu     sync.RWMutex
}

type outcome struct {
	span     *spanscan.Span
	findings privacy.Findings
	masked   bool
}

// NewPipeline creates a new span pipeline
func NewPipeline(masker Masker, cfg config.BatchConfig, logger *zap.Logger) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	return &Pipeline{
		masker: masker,
		config: cfg,
		logger: logger,
		stats:  &ProcessingStats{StartTime: time.Now()},
	}
}

// ProcessFile masks a span file (Parquet or JSON lines) into out
func (p *Pipeline) ProcessFile(ctx context.Context, filePath string, out io.Writer) (*ProcessingResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open span file: %w", err)
	}
	defer file.Close()

	format := DetectFileFormat(filePath)
	p.logger.Info("Starting span pipeline",
		zap.String("file", filePath),
		zap.String("format", string(format)),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Int("workers", p.config.WorkerCount))

	if format == FormatParquet {
		return p.ProcessParquet(ctx, file, out)
	}
	return p.ProcessJSON(ctx, file, out)
}

// ProcessJSON masks spans read as a stream of JSON objects
func (p *Pipeline) ProcessJSON(ctx context.Context, in io.Reader, out io.Writer) (*ProcessingResult, error) {
	decoder := json.NewDecoder(in)

	return p.run(ctx, out, func(result *ProcessingResult) ([]*spanscan.Span, error) {
		var batch []*spanscan.Span
		for len(batch) < p.config.BatchSize {
			var span spanscan.Span
			err := decoder.Decode(&span)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				// the decoder cannot resync after a syntax error
				return batch, fmt.Errorf("failed to decode span: %w", err)
			}
			batch = append(batch, &span)
		}
		return batch, nil
	})
}

// ProcessParquet masks spans stored in a Parquet file
func (p *Pipeline) ProcessParquet(ctx context.Context, in io.ReaderAt, out io.Writer) (*ProcessingResult, error) {
	reader := parquet.NewReader(in)
	defer reader.Close()

	return p.run(ctx, out, func(result *ProcessingResult) ([]*spanscan.Span, error) {
		var batch []*spanscan.Span
		for len(batch) < p.config.BatchSize {
			var span spanscan.Span
			err := reader.Read(&span)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				p.logger.Warn("Failed to read Parquet span", zap.Error(err))
				result.ProcessedFailed++
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			batch = append(batch, &span)
		}
		return batch, nil
	})
}

func (p *Pipeline) run(ctx context.Context, out io.Writer, readBatch func(*ProcessingResult) ([]*spanscan.Span, error)) (*ProcessingResult, error) {
	start := time.Now()
	result := &ProcessingResult{}
	p.resetStats()

	err := p.processBatches(ctx, out, readBatch, result)
	result.Duration = time.Since(start)

	p.logger.Info("Span pipeline completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("processed_failed", result.ProcessedFailed),
		zap.Int64("masked_records", result.MaskedRecords),
		zap.Int64("findings", result.Findings),
		zap.Duration("total_duration", result.Duration),
		zap.Duration("scan_time", result.ScanTime),
		zap.Duration("write_time", result.WriteTime))

	return result, err
}

func (p *Pipeline) processBatches(ctx context.Context, out io.Writer, readBatch func(*ProcessingResult) ([]*spanscan.Span, error), result *ProcessingResult) error {
	encoder := json.NewEncoder(out)
	lastReport := int64(0)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, readErr := readBatch(result)
		if len(batch) > 0 {
			if err := p.processBatch(ctx, encoder, batch, result); err != nil {
				return err
			}
		}
		if readErr != nil {
			result.ProcessedFailed++
			result.Errors = append(result.Errors, readErr.Error())
			return readErr
		}
		if len(batch) == 0 {
			return nil
		}

		if p.config.ProgressReport > 0 && result.TotalRecords-lastReport >= int64(p.config.ProgressReport) {
			lastReport = result.TotalRecords
			p.reportProgress(result)
		}
	}
}

// processBatch masks one batch on the worker pool, then writes it in order
func (p *Pipeline) processBatch(ctx context.Context, encoder *json.Encoder, batch []*spanscan.Span, result *ProcessingResult) error {
	p.mu.Lock()
	p.stats.CurrentBatch++
	p.stats.RecordsRead += int64(len(batch))
	p.mu.Unlock()

	scanStart := time.Now()
	outcomes := make([]outcome, len(batch))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.config.WorkerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				masked, findings := p.masker.MaskWithFindings(batch[i])
				outcomes[i] = outcome{span: masked, findings: findings, masked: masked != batch[i]}
			}
		}()
	}

	var cancelled error
feed:
	for i := range batch {
		select {
		case indexes <- i:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		}
	}
	close(indexes)
	wg.Wait()
	result.ScanTime += time.Since(scanStart)
	if cancelled != nil {
		return cancelled
	}

	writeStart := time.Now()
	for _, o := range outcomes {
		if err := encoder.Encode(o.span); err != nil {
			return fmt.Errorf("failed to write span: %w", err)
		}
		result.TotalRecords++
		result.ProcessedOK++
		result.Findings += int64(o.findings.Count())
		if o.masked {
			result.MaskedRecords++
		}
	}
	result.WriteTime += time.Since(writeStart)

	p.logger.Debug("Batch processed",
		zap.Int("batch_size", len(batch)),
		zap.Duration("duration", time.Since(scanStart)))
	return nil
}

func (p *Pipeline) reportProgress(result *ProcessingResult) {
	p.mu.Lock()
	elapsed := time.Since(p.stats.StartTime)
	rate := float64(result.TotalRecords) / elapsed.Seconds()
	p.stats.ProcessingRate = rate
	p.mu.Unlock()

	p.logger.Info("Processing progress",
		zap.Int64("records_processed", result.TotalRecords),
		zap.Int64("records_masked", result.MaskedRecords),
		zap.Int64("records_failed", result.ProcessedFailed),
		zap.Float64("rate_per_sec", rate),
		zap.Duration("elapsed", elapsed))
}

func (p *Pipeline) resetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats = &ProcessingStats{
		StartTime: time.Now(),
	}
}

// GetStats returns current processing statistics
func (p *Pipeline) GetStats() *ProcessingStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := *p.stats
	return &stats
}
