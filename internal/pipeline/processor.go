// Package pipeline runs one camera frame through detection filtering,
// region cropping, OCR, and reconciliation.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/semaphore"

	"busmate/internal/detect"
	"busmate/internal/domain"
	"busmate/internal/extract"
	"busmate/pkg/clovaocr"
)

// OCRClient is the recognition surface the pipeline needs.
type OCRClient interface {
	Recognize(ctx context.Context, jpegData []byte) (*clovaocr.Response, error)
}

// Evaluator reconciles extracted candidates; implemented by recon.Engine.
type Evaluator interface {
	Evaluate(detectedNumber string) domain.MatchDecision
	Snapshot() (domain.ArrivalSnapshot, bool)
}

// Frame is one captured camera frame with its detector output.
type Frame struct {
	Image      image.Image
	Detections []domain.Detection
}

type Config struct {
	TargetLabel   string
	MinConfidence float64
	MaxRegions    int
	MaxInFlight   int64
}

// Processor fans detected regions out to OCR with a global in-flight cap
// so overlapping frames cannot pile up unbounded concurrent requests.
type Processor struct {
	cfg    Config
	ocr    OCRClient
	engine Evaluator
	sem    *semaphore.Weighted
	logger *slog.Logger

	closed atomic.Bool
	wg     sync.WaitGroup
}

func NewProcessor(cfg Config, ocr OCRClient, engine Evaluator, logger *slog.Logger) *Processor {
	return &Processor{
		cfg:    cfg,
		ocr:    ocr,
		engine: engine,
		sem:    semaphore.NewWeighted(cfg.MaxInFlight),
		logger: logger.With("component", "frame_processor"),
	}
}

// ProcessFrame schedules OCR for the frame's bus regions and returns the
// number of regions accepted. It never waits for OCR round-trips, so the
// capture cadence is not blocked by recognition latency. Frames are
// skipped entirely until an arrival snapshot with a nearby stop exists.
func (p *Processor) ProcessFrame(ctx context.Context, frame Frame) int {
	if p.closed.Load() {
		return 0
	}

	snap, ok := p.engine.Snapshot()
	if !ok || !snap.HasNearbyStop {
		p.logger.Debug("skipping frame: arrival feed not ready")
		return 0
	}

	regions := detect.Filter(frame.Detections, p.cfg.TargetLabel, p.cfg.MinConfidence, p.cfg.MaxRegions)
	if len(regions) == 0 {
		return 0
	}

	// Recognition outlives the submitting request: the handler returns
	// 202 immediately and its context is canceled right after. Teardown
	// is governed by Close, not by the caller.
	workCtx := context.WithoutCancel(ctx)

	bounds := frame.Image.Bounds()
	accepted := 0
	for _, region := range regions {
		rect := region.Box.ToPixels(bounds.Dx(), bounds.Dy())
		if rect.Empty() {
			continue
		}

		crop := imaging.Crop(frame.Image, rect)
		accepted++

		p.wg.Add(1)
		go p.recognize(workCtx, crop, region.Confidence)
	}
	return accepted
}

// Wait blocks until all in-flight OCR work has finished.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Close stops new work; late completions of in-flight calls are ignored.
func (p *Processor) Close() {
	p.closed.Store(true)
	p.wg.Wait()
}

func (p *Processor) recognize(ctx context.Context, crop image.Image, confidence float64) {
	defer p.wg.Done()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer p.sem.Release(1)

	if p.closed.Load() {
		return
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, crop, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		p.logger.Error("failed to encode region", "error", err)
		return
	}

	resp, err := p.ocr.Recognize(ctx, buf.Bytes())
	if err != nil {
		var svcErr *clovaocr.ServiceError
		if errors.As(err, &svcErr) {
			p.logger.Error("ocr service error", "status", svcErr.StatusCode, "body", svcErr.Body)
		} else {
			p.logger.Error("ocr call failed", "error", err)
		}
		return
	}

	// Teardown may have happened while the request was in flight.
	if p.closed.Load() {
		return
	}

	candidate, err := extract.BusNumber(resp)
	if err != nil {
		if errors.Is(err, extract.ErrNoBusNumber) {
			p.logger.Debug("no bus number this cycle", "region_confidence", confidence)
		} else {
			p.logger.Error("ocr response rejected", "error", err)
		}
		return
	}

	p.logger.Info("bus number recognized",
		"number", candidate.Number,
		"category", candidate.Category,
		"region_confidence", confidence,
	)

	decision := p.engine.Evaluate(candidate.Number)
	p.logger.Debug("evaluated candidate", "number", candidate.Number, "match", decision.IsMatch)
}
