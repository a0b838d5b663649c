// Package pipeline runs one source connector into one destination
// connector, applying optional record transforms on the way.
//
// # Basic Usage
//
//	p := pipeline.NewSimplePipeline(source, destination, &pipeline.PipelineConfig{
//	    BufferSize:       1000,
//	    ProgressInterval: 10 * time.Second,
//	}, logger)
//	p.AddTransform(pipeline.FieldMapperTransform(map[string]string{"id": "order_id"}))
//	err := p.Run(ctx)
//
// Both connectors must be initialized before Run. Run does not close them.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sheetport/pkg/connector/core"
	"github.com/ajitpratap0/sheetport/pkg/metrics"
	"github.com/ajitpratap0/sheetport/pkg/models"
	"github.com/ajitpratap0/sheetport/pkg/observability"
	"github.com/ajitpratap0/sheetport/pkg/sheet"
)

// SimplePipeline streams records from a source to a destination.
type SimplePipeline struct {
	source      core.Source
	destination core.Destination
	transforms  []Transform

	bufferSize       int
	progressInterval time.Duration
	sourceName       string
	destinationName  string

	recordsProcessed int64
	recordsFiltered  int64
	startTime        time.Time
	duration         time.Duration

	logger *zap.Logger
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// Transform modifies a record in flight. Returning a nil record drops it.
type Transform func(ctx context.Context, record *models.Record) (*models.Record, error)

// PipelineConfig controls buffering and progress reporting.
type PipelineConfig struct {
	// BufferSize is the capacity of the channel feeding the destination
	BufferSize int
	// ProgressInterval is how often progress is logged; zero disables it
	ProgressInterval time.Duration
	// SourceName and DestinationName label the throughput metric
	SourceName      string
	DestinationName string
}

// DefaultPipelineConfig returns the configuration used when none is given.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		BufferSize:       1000,
		ProgressInterval: 10 * time.Second,
		SourceName:       "source",
		DestinationName:  "destination",
	}
}

// NewSimplePipeline creates a pipeline. Call Run to start it.
func NewSimplePipeline(source core.Source, destination core.Destination, config *PipelineConfig, logger *zap.Logger) *SimplePipeline {
	defaults := DefaultPipelineConfig()
	if config == nil {
		config = defaults
	}
	cfg := *config
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaults.BufferSize
	}
	if cfg.SourceName == "" {
		cfg.SourceName = defaults.SourceName
	}
	if cfg.DestinationName == "" {
		cfg.DestinationName = defaults.DestinationName
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SimplePipeline{
		source:           source,
		destination:      destination,
		bufferSize:       cfg.BufferSize,
		progressInterval: cfg.ProgressInterval,
		sourceName:       cfg.SourceName,
		destinationName:  cfg.DestinationName,
		logger:           logger,
	}
}

// AddTransform appends a transform. Transforms run in the order added.
func (p *SimplePipeline) AddTransform(transform Transform) {
	p.transforms = append(p.transforms, transform)
}

// Run discovers the source schema, hands it to the destination, and
// streams every record across. It blocks until the source is exhausted or
// either side fails.
func (p *SimplePipeline) Run(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, "pipeline.run")
	defer span.End()
	span.SetAttribute("source", p.sourceName)
	span.SetAttribute("destination", p.destinationName)

	err := p.run(ctx)
	span.SetAttribute("records", p.processed())
	span.RecordError(err)
	return err
}

func (p *SimplePipeline) run(ctx context.Context) error {
	p.mu.Lock()
	p.startTime = time.Now()
	p.mu.Unlock()

	p.logger.Info("starting pipeline",
		zap.String("source", p.sourceName),
		zap.String("destination", p.destinationName),
		zap.Int("buffer_size", p.bufferSize),
		zap.Int("transforms", len(p.transforms)))

	schema, err := p.source.Discover(ctx)
	if err != nil {
		return fmt.Errorf("failed to discover source schema: %w", err)
	}
	if err := p.destination.CreateSchema(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize destination schema: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := p.source.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to start source read: %w", err)
	}

	records := make(chan *models.Record, p.bufferSize)
	errs := make(chan error, 1)
	tracker := metrics.NewThroughputTracker(p.sourceName, p.destinationName)

	p.wg.Add(1)
	go p.relay(ctx, stream, records, errs, tracker)

	writeErr := p.destination.Write(ctx, &core.RecordStream{Records: records, Errors: errs})
	cancel()
	p.wg.Wait()
	drain(stream)

	p.mu.Lock()
	p.duration = time.Since(p.startTime)
	processed, filtered, duration := p.recordsProcessed, p.recordsFiltered, p.duration
	p.mu.Unlock()

	metrics.Throughput.WithLabelValues(p.sourceName, p.destinationName).Set(throughput(processed, duration))
	metrics.OperationLatency.WithLabelValues("pipeline").Observe(duration.Seconds())

	if writeErr != nil {
		p.logger.Error("pipeline failed",
			zap.Int64("records_processed", processed),
			zap.Error(writeErr))
		return fmt.Errorf("pipeline failed after %d records: %w", processed, writeErr)
	}

	p.logger.Info("pipeline completed",
		zap.Int64("records_processed", processed),
		zap.Int64("records_filtered", filtered),
		zap.Duration("duration", duration),
		zap.Float64("throughput_rps", throughput(processed, duration)))
	return nil
}

// relay forwards source records through the transforms to out. It stops at
// the first source or transform error, which it reports on errs.
func (p *SimplePipeline) relay(ctx context.Context, stream *core.RecordStream, out chan<- *models.Record, errs chan<- error, tracker *metrics.ThroughputTracker) {
	defer p.wg.Done()
	defer close(errs)
	defer close(out)

	var tick <-chan time.Time
	if p.progressInterval > 0 {
		ticker := time.NewTicker(p.progressInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	in, srcErrs := stream.Records, stream.Errors
	for in != nil || srcErrs != nil {
		select {
		case <-ctx.Done():
			return

		case record, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			transformed, err := p.apply(ctx, record)
			if err != nil {
				errs <- fmt.Errorf("transform failed at row %d: %w", record.Position, err)
				return
			}
			if transformed == nil {
				p.mu.Lock()
				p.recordsFiltered++
				p.mu.Unlock()
				continue
			}
			select {
			case out <- transformed:
				p.mu.Lock()
				p.recordsProcessed++
				p.mu.Unlock()
				tracker.Increment(1)
			case <-ctx.Done():
				return
			}

		case err, ok := <-srcErrs:
			if !ok {
				srcErrs = nil
				continue
			}
			if err != nil {
				errs <- fmt.Errorf("source error: %w", err)
				return
			}

		case <-tick:
			p.logger.Info("pipeline progress",
				zap.Int64("records_processed", p.processed()),
				zap.Float64("records_per_second", tracker.GetAndReset()))
		}
	}
}

func (p *SimplePipeline) apply(ctx context.Context, record *models.Record) (*models.Record, error) {
	for _, transform := range p.transforms {
		result, err := transform(ctx, record)
		if err != nil || result == nil {
			return nil, err
		}
		record = result
	}
	return record, nil
}

// Metrics returns pipeline statistics.
func (p *SimplePipeline) Metrics() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	duration := p.duration
	if duration == 0 && !p.startTime.IsZero() {
		duration = time.Since(p.startTime)
	}

	return map[string]interface{}{
		"records_processed": p.recordsProcessed,
		"records_filtered":  p.recordsFiltered,
		"duration":          duration.String(),
		"throughput_rps":    throughput(p.recordsProcessed, duration),
		"buffer_size":       p.bufferSize,
		"transform_count":   len(p.transforms),
	}
}

func (p *SimplePipeline) processed() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recordsProcessed
}

// Copy runs source into destination with the default configuration.
func Copy(ctx context.Context, source core.Source, destination core.Destination, logger *zap.Logger) error {
	return NewSimplePipeline(source, destination, nil, logger).Run(ctx)
}

// drain lets a stopped source goroutine finish sending.
func drain(stream *core.RecordStream) {
	for range stream.Records {
	}
	for range stream.Errors {
	}
}

func throughput(records int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(records) / d.Seconds()
}

// FieldMapperTransform renames item keys according to mapping. Unmapped
// keys and key order are preserved. Records without items pass through.
func FieldMapperTransform(mapping map[string]string) Transform {
	return func(_ context.Context, record *models.Record) (*models.Record, error) {
		if record.Item == nil {
			return record, nil
		}

		renamed := make(sheet.Item, len(record.Item))
		for i, f := range record.Item {
			renamed[i] = f
			if to, ok := mapping[f.Key]; ok {
				renamed[i].Key = to
			}
		}
		record.Item = renamed
		return record, nil
	}
}

// FilterTransform keeps only the records matching predicate.
func FilterTransform(predicate func(*models.Record) bool) Transform {
	return func(_ context.Context, record *models.Record) (*models.Record, error) {
		if predicate(record) {
			return record, nil
		}
		return nil, nil
	}
}

// SkipEmptyRows drops records whose cells are all empty.
func SkipEmptyRows() Transform {
	return FilterTransform(func(r *models.Record) bool {
		return !r.Values.IsEmpty()
	})
}
