// Package service runs the transform pipeline and loads its output into
// the warehouse
package service

import (
	"context"

	"crimetrends/internal/adapters/warehouse"
	"crimetrends/internal/core/crimes"
	"crimetrends/internal/core/sources"
	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/platform/logger"
	"crimetrends/internal/services/transform/pipeline"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/x/beamx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("crimetrends/transform")

// Runner executes a built pipeline
type Runner func(ctx context.Context, p *beam.Pipeline) error

// RunBeam runs p on the runner selected by the beam flags and logs the
// pipeline counters
func RunBeam(ctx context.Context, p *beam.Pipeline) error {
	res, err := beamx.RunWithMetrics(ctx, p)
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	log := logger.C(ctx)
	for _, c := range res.AllMetrics().Counters() {
		log.Info().Str("counter", c.Key.Name).Int64("value", c.Result()).Msg("transform counter")
	}
	return nil
}

// Service implements the ingest Transformer
type Service struct {
	loader warehouse.Loader
	years  pipeline.Years
	run    Runner
}

// New constructs the service. A nil loader skips the warehouse load and a
// nil run uses RunBeam
func New(loader warehouse.Loader, years pipeline.Years, run Runner) *Service {
	if years.From == 0 && years.To == 0 {
		years = pipeline.DefaultYears
	}
	if run == nil {
		run = RunBeam
	}
	return &Service{loader: loader, years: years, run: run}
}

// YearsFor returns the San Diego range read for args: the run's own years,
// with the configured range filling unset ends
func (s *Service) YearsFor(args crimes.JobArgs) pipeline.Years {
	y := s.years
	if args.SDFrom != 0 {
		y.From = args.SDFrom
	}
	if args.SDTo != 0 {
		y.To = args.SDTo
	}
	return y
}

// Run builds and runs the pipeline for args, then overwrites each city table
func (s *Service) Run(ctx context.Context, args crimes.JobArgs) error {
	if err := args.Validate(); err != nil {
		return err
	}
	years := s.YearsFor(args)
	if years.From > years.To {
		return perr.WithField(perr.InvalidArgf("sd year range %d..%d is empty", years.From, years.To), "sd_from")
	}
	ctx, span := tracer.Start(ctx, "transform", trace.WithAttributes(
		attribute.Int("sd.from", years.From),
		attribute.Int("sd.to", years.To),
	))
	defer span.End()
	log := logger.C(ctx)

	p, root := beam.NewPipelineWithRoot()
	outputs := pipeline.Build(root, args, years)

	log.Info().Int("cities", len(outputs)).Msg("running transform pipeline")
	if err := s.run(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		return perr.WithOp(perr.Wrap(err, perr.ErrorCodeUnknown, "transform pipeline failed"), "transform")
	}

	if s.loader == nil {
		log.Info().Msg("no warehouse configured; load skipped")
		return nil
	}
	for _, c := range sources.Cities {
		file, ok := outputs[c]
		if !ok {
			continue
		}
		spec := warehouse.CrimeTable(args.Cities[c].Table, file)
		if err := s.loader.Load(ctx, spec); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load failed")
			return err
		}
		log.Info().Str("city", string(c)).Str("table", spec.Table).Str("uri", file).Msg("table loaded")
	}
	return nil
}
