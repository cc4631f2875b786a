package ingest

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rubicon/flightlog/internal/catalog"
	"rubicon/flightlog/internal/common"
	"rubicon/flightlog/internal/config"
	"rubicon/flightlog/internal/db"
	"rubicon/flightlog/internal/db/repositories"
	"rubicon/flightlog/internal/logging"
	"rubicon/flightlog/internal/sheet"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// sheetRow describes the cells of one source row.
type sheetRow struct {
	number, crew, date, clock string
	target, platform, payload  string
	x, y, result, comment      string
}

func (r sheetRow) cells() []string {
	c := make([]string, 22)
	c[1] = r.clock
	c[2] = r.target
	c[3] = r.comment
	c[4] = r.x
	c[5] = r.y
	c[7] = r.platform
	c[9] = r.payload
	c[14] = r.result
	c[17] = r.date
	c[18] = r.number
	c[21] = r.crew
	return c
}

func validRow(n int) sheetRow {
	return sheetRow{
		number:   strconv.Itoa(n),
		crew:     "Пилот Сокол",
		date:     "01.02.2024",
		clock:    "10:30",
		target:   "Блиндаж",
		platform: "КВН-23Т",
		payload:  "ОФАБ-100",
		x:        "5432100",
		y:        "7401200",
		result:   "уничтожен",
	}
}

// workbook is an in-memory source; every open starts a fresh reader.
type workbook struct {
	lastRow int
	rows    map[int][]string
}

func newWorkbook(lastRow int) *workbook {
	return &workbook{lastRow: lastRow, rows: make(map[int][]string)}
}

func (w *workbook) set(row int, r sheetRow) *workbook {
	w.rows[row] = r.cells()
	return w
}

func (w *workbook) reader() *sheet.MemoryReader {
	r := sheet.NewMemoryReader(w.lastRow)
	for i, cells := range w.rows {
		r.Set(i, cells)
	}
	return r
}

type fixture struct {
	orm         *gorm.DB
	importer    *Importer
	records     *repositories.FlightRecordRepo
	checkpoints *repositories.CheckpointRepo
	queue       *common.LocalBackfillQueue
	books       map[string]*workbook
}

func newFixture(t *testing.T, batchSize int) *fixture {
	t.Helper()
	return newFixtureWith(t, batchSize, nil)
}

// newFixtureWith lets a test wrap the record store the importer writes through.
func newFixtureWith(t *testing.T, batchSize int, wrap func(RecordStore) RecordStore) *fixture {
	t.Helper()
	logging.SetLogger(zap.NewNop().Sugar())

	orm, err := db.Open(config.DatabaseOptions{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	sqlxDB, err := db.WrapSQLX(orm)
	require.NoError(t, err)

	f := &fixture{
		orm:         orm,
		records:     repositories.NewFlightRecordRepo(orm),
		checkpoints: repositories.NewCheckpointRepo(orm),
		queue:       common.NewLocalBackfillQueue(100),
		books:       make(map[string]*workbook),
	}

	var records RecordStore = f.records
	if wrap != nil {
		records = wrap(records)
	}

	cat := catalog.New(repositories.NewReferenceEntityRepo(orm), common.NewCacheService(0, 0), 0, nil)
	f.importer = NewImporter(Deps{
		Checkpoints: f.checkpoints,
		Records:     records,
		Index:       repositories.NewFlightIndexRepo(sqlxDB),
		Crews:       repositories.NewCrewRepo(orm),
		Catalog:     cat,
		Queue:       f.queue,
		OpenReader: func(src SourceFile, layout *sheet.Layout) (sheet.RowReader, error) {
			return f.books[src.Name].reader(), nil
		},
	}, Options{
		BatchSize:    batchSize,
		CrewPrefixes: []string{"пилот", "pilot"},
		Policy:       sheet.DefaultLookAheadPolicy(),
		Now:          func() time.Time { return testNow },
	})
	t.Cleanup(f.importer.Close)
	return f
}

// source registers book under name and returns its identity.
func (f *fixture) source(name string, book *workbook) SourceFile {
	f.books[name] = book
	return SourceFile{Name: name, ByteSize: int64(len(book.rows)), ContentHash: "hash-" + name}
}

func (f *fixture) countRecords(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.orm.Table("flight_records").Count(&n).Error)
	return n
}

func (f *fixture) run(t *testing.T, src SourceFile) Summary {
	t.Helper()
	summary, err := f.importer.Run(context.Background(), src, nil, nil)
	require.NoError(t, err)
	return summary
}
