// Package pproc runs extraction jobs over a DBLP dump in parallel.
package pproc

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/miku/dblpkit/extract"
	"github.com/miku/dblpkit/normal"
	"github.com/miku/dblpkit/output"
	"github.com/miku/dblpkit/schema/dblp"
	"github.com/miku/dblpkit/xio"
	"github.com/miku/dblpkit/xmlstream"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// progressInterval is the number of records between progress messages.
const progressInterval = 1_000_000

// Job extracts one entity profile from an input file into an output file.
type Job struct {
	Profile dblp.Profile
	Input   string
	Output  string
	Format  output.Format
}

func (j Job) String() string {
	return fmt.Sprintf("%s: %s -> %s", j.Profile.Name, j.Input, j.Output)
}

// Report summarizes a finished job.
type Report struct {
	Job     Job
	Stats   extract.Stats
	Authors int
	// Skipped is set, if the output existed already.
	Skipped bool
	// Malformed counts records dropped by the walker.
	Malformed int
	Elapsed   time.Duration
}

// Fields returns the report as log fields.
func (r Report) Fields() logrus.Fields {
	fields := logrus.Fields{
		"entity":  r.Job.Profile.Name,
		"output":  r.Job.Output,
		"elapsed": r.Elapsed.Round(time.Millisecond).String(),
	}
	if r.Job.Profile.Authors {
		fields["authors"] = r.Authors
	} else {
		fields["total"] = r.Stats.Total()
		fields["full"] = r.Stats.Full
		fields["partial"] = r.Stats.Partial
		for k, v := range r.Stats.Features {
			fields["f_"+k] = v
		}
	}
	if r.Malformed > 0 {
		fields["malformed"] = r.Malformed
	}
	return fields
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers sets the number of jobs running at the same time.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.numWorkers = n
		}
	}
}

// WithForce overwrites existing outputs.
func WithForce(force bool) RunnerOption {
	return func(r *Runner) { r.force = force }
}

// WithKey adds the record key as the first column.
func WithKey(includeKey bool) RunnerOption {
	return func(r *Runner) { r.includeKey = includeKey }
}

// WithUUID adds an id column, derived from the record key. Implies WithKey.
func WithUUID(enabled bool) RunnerOption {
	return func(r *Runner) { r.uuid = enabled }
}

// WithSince only keeps records modified on or after t.
func WithSince(t time.Time) RunnerOption {
	return func(r *Runner) { r.since = t }
}

// WithLimit limits the number of records per job.
func WithLimit(n int) RunnerOption {
	return func(r *Runner) { r.limit = n }
}

// WithNormalizer applies a normalizer to extracted values and author names.
func WithNormalizer(n normal.Normalizer) RunnerOption {
	return func(r *Runner) { r.normalizer = n }
}

// WithWalkerOptions passes options to each walker.
func WithWalkerOptions(opts ...xmlstream.Option) RunnerOption {
	return func(r *Runner) { r.walkerOpts = append(r.walkerOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// Runner runs jobs. Every job reads its own stream of the input.
type Runner struct {
	numWorkers int
	force      bool
	includeKey bool
	uuid       bool
	since      time.Time
	limit      int
	normalizer normal.Normalizer
	walkerOpts []xmlstream.Option
	log        logrus.FieldLogger
}

// NewRunner creates a runner, running a single job at a time by default.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		numWorkers: 1,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.numWorkers > runtime.NumCPU() {
		r.log.WithField("workers", r.numWorkers).Debug("more workers than cpus")
	}
	return r
}

// Run runs all jobs and returns a report per job, in job order. The first
// failing job cancels the others.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Report, error) {
	reports := make([]Report, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.numWorkers)
	for i, job := range jobs {
		g.Go(func() error {
			report, err := r.RunJob(ctx, job)
			if err != nil {
				return fmt.Errorf("%s: %w", job.Profile.Name, err)
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// RunJob runs a single job. A job with an existing output is skipped,
// unless the runner is forced.
func (r *Runner) RunJob(ctx context.Context, job Job) (Report, error) {
	var (
		report = Report{Job: job}
		log    = r.log.WithField("entity", job.Profile.Name)
		start  = time.Now()
	)
	if err := job.Profile.Validate(); err != nil {
		return report, err
	}
	if !r.force && xio.Exists(job.Output) {
		log.WithField("output", job.Output).Info("output exists, skipping")
		report.Skipped = true
		return report, nil
	}
	rc, err := xio.Open(job.Input)
	if err != nil {
		return report, err
	}
	defer rc.Close()
	opts := append([]xmlstream.Option{xmlstream.WithLogger(log)}, r.walkerOpts...)
	w := xmlstream.NewWalker(rc, dblp.Tags(job.Profile.Types), opts...)
	src := &source{Walker: w, ctx: ctx, log: log}
	if job.Profile.Authors {
		err = r.runAuthors(ctx, src, job, &report)
	} else {
		err = r.runRecords(ctx, src, job, &report)
	}
	if err != nil {
		return report, err
	}
	report.Malformed = w.Stats().Skipped
	report.Elapsed = time.Since(start)
	log.WithFields(report.Fields()).Info(report.summary())
	return report, nil
}

func (r *Runner) runRecords(ctx context.Context, src extract.Source, job Job, report *Report) error {
	includeKey := r.includeKey || r.uuid
	records, stats, err := extract.Process(src, job.Profile.TypeSet(), job.Profile.Features, includeKey,
		extract.WithSince(r.since),
		extract.WithLimit(r.limit),
		extract.WithNormalizer(r.normalizer),
		extract.WithLogger(r.log))
	if err != nil {
		return err
	}
	report.Stats = stats
	table := output.NewTable(job.Profile.Name, records, job.Profile.Features, includeKey)
	table.UUID = r.uuid
	return output.WriteFile(ctx, job.Output, job.Format, table)
}

func (r *Runner) runAuthors(ctx context.Context, src extract.Source, job Job, report *Report) error {
	set, err := extract.CollectAuthors(src)
	if err != nil {
		return err
	}
	if r.normalizer != nil {
		normalized := make(extract.AuthorSet, set.Len())
		for name := range set {
			if name != "" {
				name = r.normalizer.Normalize(name)
			}
			normalized.Add(name)
		}
		set = normalized
	}
	report.Authors = set.Len()
	return output.WriteAuthorsFile(ctx, job.Output, job.Format, set.Sorted())
}

func (r Report) summary() string {
	if r.Job.Profile.Authors {
		return fmt.Sprintf("%s distinct authors", humanize.Comma(int64(r.Authors)))
	}
	return r.Stats.String()
}

// source stops a walker on cancellation and logs progress.
type source struct {
	*xmlstream.Walker
	ctx   context.Context
	log   logrus.FieldLogger
	count int64
}

func (s *source) Next() bool {
	if s.ctx.Err() != nil {
		return false
	}
	if !s.Walker.Next() {
		return false
	}
	s.count++
	if s.count%progressInterval == 0 {
		s.log.Infof("%s records", humanize.Comma(s.count))
	}
	return true
}

func (s *source) Err() error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	return s.Walker.Err()
}

var _ extract.Source = (*source)(nil)
