package interpreter

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/msgtrace/tracecheck/internal/analysis"
	"github.com/msgtrace/tracecheck/internal/archive"
	"github.com/msgtrace/tracecheck/internal/config"
	"github.com/msgtrace/tracecheck/internal/devices"
	"github.com/msgtrace/tracecheck/internal/models"
	"github.com/msgtrace/tracecheck/internal/storage"
)

// GroupSummary is the final connectivity count of one subscription group.
type GroupSummary struct {
	Name string
	devices.GroupStats
}

// Summary is the outcome of a completed run.
type Summary struct {
	Files          []*FileResult
	Groups         []GroupSummary
	Reports        []*analysis.Report
	Slots          int // connection slots seen
	ConnectedSlots int // slots whose client was still connected at the end
	Errors         int // recoverable errors
}

// Verdict is the closing line of a successful run.
func (s *Summary) Verdict() string {
	if s.Errors == 0 {
		return "all good, no errors"
	}
	return fmt.Sprintf("%d recoverable errors", s.Errors)
}

// Runner replays every trace file of a directory in order, then reports.
type Runner struct {
	cfg       *config.AppConfig
	catalog   *storage.Catalog
	extractor *archive.Extractor
	logger    zerolog.Logger
}

func NewRunner(cfg *config.AppConfig, logger zerolog.Logger) *Runner {
	return &Runner{
		cfg:       cfg,
		catalog:   storage.NewCatalog(cfg.Trace.CurrentName, cfg.Trace.ArchiveSuffix),
		extractor: archive.NewExtractor(cfg.Trace.TempDirectory, logger),
		logger:    logger,
	}
}

// Run processes dir. Nothing is reported unless every file was consumed.
func (r *Runner) Run(dir string) (*Summary, error) {
	files, err := r.catalog.Discover(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		r.logger.Warn().Str("dir", dir).Msg("no trace files found")
	}

	in := New(r.cfg.Interpret, r.logger)
	summary := &Summary{}

	for _, f := range files {
		res, err := r.processFile(in, f)
		if err != nil {
			return nil, err
		}
		summary.Files = append(summary.Files, res)
	}

	slots := in.Slots()
	summary.Slots = slots.Len()
	summary.ConnectedSlots = len(slots.Connected())
	r.logger.Info().
		Int("files", len(summary.Files)).
		Int("slots", summary.Slots).
		Int("connected_slots", summary.ConnectedSlots).
		Msg("trace replay complete")

	store := in.Devices()
	for _, name := range store.Groups() {
		st := store.Stats(name)
		summary.Groups = append(summary.Groups, GroupSummary{Name: name, GroupStats: st})
		r.logger.Info().
			Str("group", name).
			Int("devices", st.Devices).
			Int("connected", st.Connected).
			Int("disconnected", st.Disconnected).
			Msg("subscription group")
	}

	if len(r.cfg.Comparisons) > 0 {
		snap := store.Snapshot()
		for _, cmp := range r.cfg.Comparisons {
			rep := analysis.Compare(snap, analysis.Pair{Left: cmp.Left, Right: cmp.Right})
			rep.Log(r.logger)
			summary.Reports = append(summary.Reports, rep)
		}
	}

	summary.Errors = in.ErrorCount()
	return summary, nil
}

func (r *Runner) processFile(in *Interpreter, f *models.TraceFile) (*FileResult, error) {
	path := f.Path
	var extracted *archive.Extracted
	if f.Archived {
		var err error
		extracted, err = r.extractor.Extract(f.Path)
		if err != nil {
			return nil, err
		}
		path = extracted.Path
	}

	res, err := in.ProcessFile(f.Name, path)
	if extracted != nil {
		if rmErr := extracted.Remove(); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info().
		Str("file", f.Name).
		Str("size", humanize.Bytes(uint64(f.Size))).
		Int("lines", res.Lines).
		Int("notifications", res.Messages).
		Bool("current", f.Current).
		Msg("trace file processed")
	return res, nil
}
