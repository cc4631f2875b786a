package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"rubicon/flightlog/internal/catalog"
	"rubicon/flightlog/internal/common"
	"rubicon/flightlog/internal/db/repositories"
	models "rubicon/flightlog/internal/models/gorm"
	"rubicon/flightlog/internal/sheet"
)

// RecordStore is the flight record table as the writer uses it.
type RecordStore interface {
	InsertBatch(ctx context.Context, records []*models.FlightRecord) (int64, error)
	InsertOne(ctx context.Context, record *models.FlightRecord) error
	ExistsByID(ctx context.Context, id string) (bool, error)
	IdentityExists(ctx context.Context, number int64, crewID string, on time.Time, at string) (bool, error)
	ExistsIdentical(ctx context.Context, rec *models.FlightRecord) (bool, error)
}

// IdentityIndex answers identity questions in bulk.
type IdentityIndex interface {
	Identities(ctx context.Context) ([]repositories.FlightIdentity, error)
	NumberTaken(ctx context.Context, crewID string, number int64) (bool, error)
}

type CrewStore interface {
	GetOrCreate(ctx context.Context, callname, callnameKey string, placeholder bool) (*models.Crew, error)
}

type categoryRef struct {
	domain catalog.Domain
	key    string
}

// draft is a prepared record plus the catalog keys its category names came from.
type draft struct {
	record *models.FlightRecord
	refs   [4]*categoryRef
}

type prepareOutcome int

const (
	prepared prepareOutcome = iota
	duplicate
)

func identityKey(number int64, crewID string, on time.Time, at string) string {
	return fmt.Sprintf("%d|%s|%s|%s", number, crewID, on.Format("2006-01-02"), at)
}

// Writer turns rows into flight records for one import run. It is not safe
// for concurrent use; each session owns one.
type Writer struct {
	records   RecordStore
	index     IdentityIndex
	crews     CrewStore
	crewCache common.CacheInterface
	catalog   *catalog.Catalog
	prefixes  []string
	now       func() time.Time
	log       *zap.SugaredLogger

	checkpointID string
	seen         map[string]struct{}
	numbers      map[string]map[int64]struct{}
}

type writerConfig struct {
	records   RecordStore
	index     IdentityIndex
	crews     CrewStore
	crewCache common.CacheInterface
	catalog   *catalog.Catalog
	prefixes  []string
	now       func() time.Time
}

// newWriter seeds the duplicate set from every stored identity.
func newWriter(ctx context.Context, cfg writerConfig, checkpointID string, log *zap.SugaredLogger) (*Writer, error) {
	w := &Writer{
		records:      cfg.records,
		index:        cfg.index,
		crews:        cfg.crews,
		crewCache:    cfg.crewCache,
		catalog:      cfg.catalog,
		prefixes:     cfg.prefixes,
		now:          cfg.now,
		log:          log,
		checkpointID: checkpointID,
		seen:         make(map[string]struct{}),
		numbers:      make(map[string]map[int64]struct{}),
	}

	ids, err := cfg.index.Identities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to seed duplicate index: %w", err)
	}
	for _, id := range ids {
		w.remember(id.RecordNumber, id.CrewID, dateOnly(id.OccurredOn), id.OccurredAt)
	}
	return w, nil
}

func (w *Writer) remember(number int64, crewID string, on time.Time, at string) {
	w.seen[identityKey(number, crewID, on, at)] = struct{}{}
	nums, ok := w.numbers[crewID]
	if !ok {
		nums = make(map[int64]struct{})
		w.numbers[crewID] = nums
	}
	nums[number] = struct{}{}
}

func (w *Writer) resolveCrew(ctx context.Context, raw string, row int) (*models.Crew, error) {
	name := crewName(raw, w.prefixes)
	placeholder := false
	if sheet.IsEmptyValue(name) {
		name = fmt.Sprintf("Unknown-%d", row)
		placeholder = true
	}
	key := crewKey(name)

	v, err := w.crewCache.GetOrSet("crew:"+key, common.NoExpiration, func() (any, error) {
		return w.crews.GetOrCreate(ctx, name, key, placeholder)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve crew %q: %w", name, err)
	}
	return v.(*models.Crew), nil
}

// numberTaken reports whether crewID already uses n, in this run or in the store.
func (w *Writer) numberTaken(ctx context.Context, crewID string, n int64) (bool, error) {
	if _, used := w.numbers[crewID][n]; used {
		return true, nil
	}
	taken, err := w.index.NumberTaken(ctx, crewID, n)
	if err != nil {
		return false, fmt.Errorf("failed to check record number: %w", err)
	}
	return taken, nil
}

// synthesizeNumber assigns rec a number derived from its date, crew and row,
// probing upward past numbers the crew already uses. A taken candidate whose
// record is identical to rec means rec was imported before.
func (w *Writer) synthesizeNumber(ctx context.Context, rec *models.FlightRecord) (prepareOutcome, error) {
	n := syntheticNumber(rec.OccurredOn, rec.CrewID, rec.SourceRow)
	for {
		taken, err := w.numberTaken(ctx, rec.CrewID, n)
		if err != nil {
			return 0, err
		}
		rec.RecordNumber = n
		if !taken {
			return prepared, nil
		}
		identical, err := w.records.ExistsIdentical(ctx, rec)
		if err != nil {
			return 0, fmt.Errorf("failed to check for identical record: %w", err)
		}
		if identical {
			return duplicate, nil
		}
		n = (n + 1) % syntheticNumberMod
	}
}

func (w *Writer) category(raw string, d catalog.Domain) (string, *categoryRef) {
	e, ok := w.catalog.Resolve(raw, d)
	if !ok {
		return "", nil
	}
	return e.DisplayName, &categoryRef{domain: d, key: e.ComparisonKey}
}

// prepare builds the draft for row. Bad date, time or coordinate text never
// fails a row; only store errors do.
func (w *Writer) prepare(ctx context.Context, row sheet.Row) (*draft, prepareOutcome, error) {
	crew, err := w.resolveCrew(ctx, row.Crew, row.Index)
	if err != nil {
		return nil, 0, err
	}

	on, ok := parseDate(row.Date)
	if !ok {
		on = dateOnly(w.now())
		if row.Date != "" {
			w.log.Debugw("Unparseable date, using today", "row", row.Index, "value", row.Date)
		}
	}
	at, ok := parseTime(row.Time)
	if !ok {
		at = midnight
	}

	rec := &models.FlightRecord{
		CheckpointID: w.checkpointID,
		SourceRow:    row.Index,
		CrewID:       crew.ID,
		OccurredOn:   on,
		OccurredAt:   at,
		ResultCode:   mapResult(row.Result),
		Objective:    ObjectiveExists,
		Distance:     truncateRunes(row.Distance, 100),
		Comment:      truncateRunes(row.Comment, commentLimit),
	}
	if row.X != "" && row.Y != "" {
		raw := row.X + " " + row.Y
		rec.RawCoordinates = &raw
	}

	d := &draft{record: rec}
	rec.Target, d.refs[0] = w.category(row.Target, catalog.DomainTarget)
	rec.Platform, d.refs[1] = w.category(row.Platform, catalog.DomainPlatform)
	rec.Payload, d.refs[2] = w.category(row.Payload, catalog.DomainPayload)
	rec.Fuze, d.refs[3] = w.category(row.Fuze, catalog.DomainFuze)

	if n, ok := extractNumber(row.Number); ok {
		rec.RecordNumber = n
		if _, dup := w.seen[identityKey(n, crew.ID, on, at)]; dup {
			return nil, duplicate, nil
		}
		// catches records committed by another importer after the index was seeded
		identical, err := w.records.ExistsIdentical(ctx, rec)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to check for identical record: %w", err)
		}
		if identical {
			return nil, duplicate, nil
		}
	} else {
		outcome, err := w.synthesizeNumber(ctx, rec)
		if err != nil || outcome == duplicate {
			return nil, outcome, err
		}
	}

	w.remember(rec.RecordNumber, crew.ID, on, at)
	return d, prepared, nil
}

// commitResult tallies one batch commit.
type commitResult struct {
	created    int
	duplicates int
	failed     int
}

// commit flushes the catalog, inserts drafts and reconciles rows the batch
// insert did not write.
func (w *Writer) commit(ctx context.Context, drafts []*draft) (commitResult, error) {
	var res commitResult
	if len(drafts) == 0 {
		return res, nil
	}

	if _, err := w.catalog.Flush(ctx); err != nil {
		return res, err
	}

	records := make([]*models.FlightRecord, len(drafts))
	for i, d := range drafts {
		w.refreshDisplayNames(d)
		records[i] = d.record
	}

	inserted, err := w.records.InsertBatch(ctx, records)
	if err == nil && int(inserted) == len(records) {
		res.created = len(records)
		return res, nil
	}
	if err != nil {
		w.log.Warnw("Batch insert failed, reconciling rows individually", "rows", len(records), "error", err)
	}

	for _, rec := range records {
		exists, err := w.records.ExistsByID(ctx, rec.ID)
		if err != nil {
			return res, err
		}
		if exists {
			res.created++
			continue
		}

		dup, err := w.records.IdentityExists(ctx, rec.RecordNumber, rec.CrewID, rec.OccurredOn, rec.OccurredAt)
		if err != nil {
			return res, err
		}
		if dup {
			res.duplicates++
			continue
		}

		if err := w.records.InsertOne(ctx, rec); err != nil {
			w.log.Errorw("Skipping row after retry", "row", rec.SourceRow, "error", err)
			res.failed++
			continue
		}
		res.created++
	}
	return res, nil
}

// refreshDisplayNames picks up display names the catalog settled on during flush.
func (w *Writer) refreshDisplayNames(d *draft) {
	fields := [4]*string{&d.record.Target, &d.record.Platform, &d.record.Payload, &d.record.Fuze}
	for i, ref := range d.refs {
		if ref == nil {
			continue
		}
		if e, ok := w.catalog.Lookup(ref.domain, ref.key); ok {
			*fields[i] = e.DisplayName
		}
	}
}
