package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rubicon/flightlog/internal/catalog"
	"rubicon/flightlog/internal/common"
	"rubicon/flightlog/internal/logging"
	"rubicon/flightlog/internal/metrics"
	models "rubicon/flightlog/internal/models/gorm"
	"rubicon/flightlog/internal/sheet"
)

// ErrNoSession is returned for a checkpoint with no open import in this process.
var ErrNoSession = errors.New("no open import session for checkpoint")

// BatchResult summarizes one ImportNextBatch call.
type BatchResult struct {
	Created              int  `json:"created"`
	SkippedDuplicate     int  `json:"skipped_duplicate"`
	SkippedError         int  `json:"skipped_error"`
	CheckpointAdvancedTo int  `json:"checkpoint_advanced_to"`
	Completed            bool `json:"completed"`
}

// Summary is the outcome of a whole import run.
type Summary struct {
	FileName         string `json:"file_name"`
	CheckpointID     string `json:"checkpoint_id"`
	Created          int    `json:"created"`
	SkippedDuplicate int    `json:"skipped_duplicate"`
	SkippedError     int    `json:"skipped_error"`
	LastRow          int    `json:"last_row"`
	Completed        bool   `json:"completed"`
	AlreadyCompleted bool   `json:"already_completed"`
}

func (s *Summary) add(r BatchResult) {
	s.Created += r.Created
	s.SkippedDuplicate += r.SkippedDuplicate
	s.SkippedError += r.SkippedError
	s.LastRow = r.CheckpointAdvancedTo
	s.Completed = r.Completed
}

// ReaderOpener opens the row source of a file.
type ReaderOpener func(src SourceFile, layout *sheet.Layout) (sheet.RowReader, error)

// OpenExcelReader is the default ReaderOpener.
func OpenExcelReader(src SourceFile, layout *sheet.Layout) (sheet.RowReader, error) {
	return sheet.OpenExcel(src.Path, layout)
}

type Options struct {
	BatchSize       int
	DefaultStartRow int
	CrewPrefixes    []string
	Layout          *sheet.Layout
	Policy          sheet.LookAheadPolicy
	LockTTL         time.Duration
	Now             func() time.Time
}

type Deps struct {
	Checkpoints CheckpointRepository
	Records     RecordStore
	Index       IdentityIndex
	Crews       CrewStore
	Catalog     *catalog.Catalog
	CrewCache   common.CacheInterface
	Lock        common.FileLock
	Queue       common.BackfillQueue
	Metrics     *metrics.Registry
	OpenReader  ReaderOpener
}

type session struct {
	mu         sync.Mutex
	source     SourceFile
	checkpoint *models.ImportCheckpoint
	cursor     *sheet.Cursor
	writer     *Writer
	release    func()
	log        *zap.SugaredLogger
	closed     bool
}

// Importer runs resumable imports. Each file is imported sequentially by one
// session; distinct files may run in parallel.
type Importer struct {
	opts        Options
	deps        Deps
	checkpoints *CheckpointStore

	mu       sync.Mutex
	sessions map[string]*session
}

func NewImporter(deps Deps, opts Options) *Importer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 25
	}
	if opts.Layout == nil {
		opts.Layout = sheet.DefaultLayout()
	}
	if opts.DefaultStartRow <= 0 {
		opts.DefaultStartRow = opts.Layout.StartRow
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 6 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.OpenReader == nil {
		deps.OpenReader = OpenExcelReader
	}
	if deps.Lock == nil {
		deps.Lock = common.NewLocalFileLock()
	}
	if deps.CrewCache == nil {
		deps.CrewCache = common.NewCacheService(time.Hour, 10*time.Minute)
	}
	return &Importer{
		opts:        opts,
		deps:        deps,
		checkpoints: NewCheckpointStore(deps.Checkpoints, opts.DefaultStartRow),
		sessions:    make(map[string]*session),
	}
}

func (im *Importer) Checkpoints() *CheckpointStore { return im.checkpoints }

// BeginImport opens (or resumes) the import of src. A completed checkpoint is
// returned as is and no session is opened.
func (im *Importer) BeginImport(ctx context.Context, src SourceFile, startRowOverride *int) (*models.ImportCheckpoint, error) {
	release, err := im.deps.Lock.Acquire(ctx, src.LockKey(), im.opts.LockTTL)
	if err != nil {
		return nil, err
	}

	cp, err := im.begin(ctx, src, startRowOverride, release)
	if err != nil {
		release()
		return nil, err
	}
	return cp, nil
}

func (im *Importer) begin(ctx context.Context, src SourceFile, startRowOverride *int, release func()) (*models.ImportCheckpoint, error) {
	opened, err := im.checkpoints.Open(ctx, src, startRowOverride)
	if err != nil {
		return nil, err
	}
	cp := opened.Checkpoint
	log := logging.WithImport(src.Name, src.ContentHash, cp.ID)

	if opened.AlreadyCompleted {
		log.Infow("Source file already imported, skipping", "last_row", cp.LastProcessedRow)
		release()
		return cp, nil
	}

	if err := im.deps.Catalog.Load(ctx); err != nil {
		return nil, err
	}

	reader, err := im.deps.OpenReader(src, im.opts.Layout)
	if err != nil {
		return nil, err
	}
	cursor, err := sheet.NewCursor(reader, im.opts.Layout, im.opts.Policy, opened.StartRow)
	if err != nil {
		reader.Close()
		return nil, err
	}

	writer, err := newWriter(ctx, writerConfig{
		records:   im.deps.Records,
		index:     im.deps.Index,
		crews:     im.deps.Crews,
		crewCache: im.deps.CrewCache,
		catalog:   im.deps.Catalog,
		prefixes:  im.opts.CrewPrefixes,
		now:       im.opts.Now,
	}, cp.ID, log)
	if err != nil {
		cursor.Close()
		return nil, err
	}

	im.mu.Lock()
	im.sessions[cp.ID] = &session{
		source:     src,
		checkpoint: cp,
		cursor:     cursor,
		writer:     writer,
		release:    release,
		log:        log,
	}
	im.mu.Unlock()
	im.deps.Metrics.SessionOpened()

	log.Infow("Import session opened", "start_row", opened.StartRow, "total_created", cp.TotalCreated)
	return cp, nil
}

func (im *Importer) session(checkpointID string) (*session, error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	s, ok := im.sessions[checkpointID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, checkpointID)
	}
	return s, nil
}

// Abort closes the session without completing its checkpoint. The checkpoint
// still points at the last committed row.
func (im *Importer) Abort(checkpointID string) {
	im.mu.Lock()
	s, ok := im.sessions[checkpointID]
	im.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	im.drop(checkpointID, s)
}

// drop unregisters s, closes its source and releases the file lock.
// The caller holds s.mu.
func (im *Importer) drop(checkpointID string, s *session) {
	im.mu.Lock()
	if im.sessions[checkpointID] == s {
		delete(im.sessions, checkpointID)
	}
	im.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if err := s.cursor.Close(); err != nil {
		s.log.Warnw("Failed to close source", "error", err)
	}
	s.release()
	im.deps.Metrics.SessionClosed()
}

// ImportNextBatch commits the next batch of rows and advances the checkpoint
// to the last row it covered. Any error ends the session: the cursor has
// already moved past rows that were not committed, so the import must be begun
// again from the checkpoint.
func (im *Importer) ImportNextBatch(ctx context.Context, checkpointID string) (BatchResult, error) {
	s, err := im.session(checkpointID)
	if err != nil {
		return BatchResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return BatchResult{}, fmt.Errorf("%w: %s", ErrNoSession, checkpointID)
	}

	res, err := im.nextBatch(ctx, s)
	if err != nil {
		s.log.Warnw("Import batch failed, session closed",
			"last_committed_row", s.checkpoint.LastProcessedRow,
			"error", err,
		)
		im.drop(checkpointID, s)
		return res, err
	}
	if res.Completed {
		im.drop(checkpointID, s)
	}
	return res, nil
}

func (im *Importer) nextBatch(ctx context.Context, s *session) (BatchResult, error) {
	checkpointID := s.checkpoint.ID

	started := time.Now()
	var res BatchResult
	var drafts []*draft

	for len(drafts) < im.opts.BatchSize {
		row, ok, err := s.cursor.Next()
		if err != nil {
			return res, fmt.Errorf("failed to read row after %d: %w", s.cursor.Position(), err)
		}
		if !ok {
			break
		}
		d, outcome, err := s.writer.prepare(ctx, row)
		if err != nil {
			return res, err
		}
		if outcome == duplicate {
			res.SkippedDuplicate++
			continue
		}
		drafts = append(drafts, d)
	}

	committed, err := s.writer.commit(ctx, drafts)
	if err != nil {
		return res, err
	}
	res.Created = committed.created
	res.SkippedDuplicate += committed.duplicates
	res.SkippedError = committed.failed

	lastRow := max(s.cursor.LastDataRow(), s.checkpoint.LastProcessedRow)
	if lastRow > s.checkpoint.LastProcessedRow || res.Created > 0 {
		if err := im.checkpoints.Advance(ctx, s.checkpoint, lastRow, res.Created, s.cursor.Extent()); err != nil {
			return res, err
		}
	}
	res.CheckpointAdvancedTo = s.checkpoint.LastProcessedRow

	im.deps.Metrics.ObserveImportRows(res.Created, res.SkippedDuplicate, res.SkippedError)
	im.deps.Metrics.ObserveBatchCommit(started)

	if res.Created > 0 && im.deps.Queue != nil {
		req := &common.BackfillRequest{CheckpointID: checkpointID, Records: res.Created, RequestedAt: time.Now()}
		if err := im.deps.Queue.Enqueue(ctx, req); err != nil {
			// the scheduled sweep covers it
			s.log.Warnw("Failed to enqueue backfill request", "error", err)
		}
	}

	if s.cursor.Exhausted() {
		if err := im.checkpoints.Complete(ctx, s.checkpoint, lastRow, s.cursor.Extent()); err != nil {
			return res, err
		}
		res.Completed = true
		s.log.Infow("Import completed",
			"last_row", lastRow,
			"total_created", s.checkpoint.TotalCreated,
			"stopped_on_empty_run", s.cursor.GaveUp(),
		)
	}

	return res, nil
}

// Run imports src to completion, calling progress after every batch.
func (im *Importer) Run(ctx context.Context, src SourceFile, startRowOverride *int, progress func(BatchResult)) (Summary, error) {
	summary := Summary{FileName: src.Name}

	cp, err := im.BeginImport(ctx, src, startRowOverride)
	if err != nil {
		return summary, err
	}
	summary.CheckpointID = cp.ID
	summary.LastRow = cp.LastProcessedRow
	if cp.Completed {
		summary.Completed = true
		summary.AlreadyCompleted = true
		return summary, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			im.Abort(cp.ID)
			return summary, err
		}
		res, err := im.ImportNextBatch(ctx, cp.ID)
		if err != nil {
			im.Abort(cp.ID)
			return summary, err
		}
		summary.add(res)
		if progress != nil {
			progress(res)
		}
		if res.Completed {
			return summary, nil
		}
	}
}

// ImportAll runs several files with at most concurrency imports at a time.
// One failed file does not stop the others; their errors are joined.
func (im *Importer) ImportAll(ctx context.Context, sources []SourceFile, concurrency int) ([]Summary, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	summaries := make([]Summary, len(sources))
	errs := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			summary, err := im.Run(gctx, src, nil, nil)
			summaries[i] = summary
			if err != nil {
				logging.Error("Import failed", "file", src.Name, "error", err)
				errs[i] = fmt.Errorf("%s: %w", src.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return summaries, errors.Join(errs...)
}

// Sessions lists the checkpoints with an open session.
func (im *Importer) Sessions() []string {
	im.mu.Lock()
	defer im.mu.Unlock()
	ids := make([]string, 0, len(im.sessions))
	for id := range im.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Close aborts every open session.
func (im *Importer) Close() {
	for _, id := range im.Sessions() {
		im.Abort(id)
	}
}
