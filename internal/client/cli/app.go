package cli

import (
	"context"
	"io"
	"time"

	"github.com/dmitrijs2005/mediakeeper/internal/bootstrap"
	"github.com/dmitrijs2005/mediakeeper/internal/config"
	"github.com/dmitrijs2005/mediakeeper/internal/logging"
	"github.com/dmitrijs2005/mediakeeper/internal/models"
)

// DefaultLogFile keeps the shell's own logs off the terminal.
const DefaultLogFile = "mediakeeper-cli.log"

// library is the part of services.Library the shell drives.
type library interface {
	Sync(ctx context.Context) (models.SyncReport, error)
	Query(ctx context.Context, opts models.QueryOptions) (models.GroupedResult, error)
	Get(ctx context.Context, id int64) (*models.MetadataRecord, error)
	ToggleFavorite(ctx context.Context, id int64) (bool, error)
	SetHidden(ctx context.Context, id int64, hidden bool) error
	SoftDelete(ctx context.Context, ids []int64) ([]int64, error)
	Restore(ctx context.Context, ids []int64) ([]int64, error)
	RecycleBin(ctx context.Context) ([]models.RecycleBinEntry, error)
	ScanExpired(ctx context.Context, window time.Duration) ([]int64, error)
	Retention() time.Duration
	RequestPermanentDelete(ctx context.Context, ids []int64) (models.PermanentDeleteReport, error)
	PurgeExpired(ctx context.Context) (models.PermanentDeleteReport, error)
	Stats(ctx context.Context) (models.LibraryStats, error)
}

type App struct {
	lib    library
	out    io.Writer
	loc    *time.Location
	lines  <-chan string
	logger logging.Logger
	closer io.Closer
}

// NewApp builds the runtime for an interactive session. Consent prompts are
// only offered when interactive is true; otherwise permanent deletes are
// refused.
func NewApp(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, interactive bool) (*App, error) {
	opts := logging.DefaultOptions()
	opts.Level = cfg.LogLevel
	opts.JSON = cfg.LogJSON
	opts.File = cfg.LogFile
	if opts.File == "" {
		opts.File = DefaultLogFile
	}
	opts.Stdout = false

	logger, logCloser, err := logging.New(opts)
	if err != nil {
		return nil, err
	}

	lines := readLines(in)
	rt, err := bootstrap.Build(ctx, cfg, logger, bootstrap.Deps{
		Consenter: bootstrap.NewConsenter(cfg, lines, out, interactive),
	})
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}
	rt.WithLogCloser(logCloser)

	loc, _ := cfg.Location()
	return &App{
		lib:    rt.Library,
		out:    out,
		loc:    loc,
		lines:  lines,
		logger: logger.With("module", "cli"),
		closer: rt,
	}, nil
}

func newApp(lib library, lines <-chan string, out io.Writer, loc *time.Location) *App {
	if loc == nil {
		loc = time.UTC
	}
	return &App{lib: lib, out: out, loc: loc, lines: lines, logger: logging.Discard()}
}

// Run blocks in the REPL until the user exits, input ends or ctx is done.
func (a *App) Run(ctx context.Context) error {
	runREPL(ctx, a, a.status, a.lines, a.out)
	return ctx.Err()
}

func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// status is shown in the prompt.
func (a *App) status() string {
	stats, err := a.lib.Stats(context.Background())
	if err != nil {
		return "store error"
	}
	return formatStatus(stats)
}
