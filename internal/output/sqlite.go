package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/anomalystream/internal/errors"
	"github.com/tphakala/anomalystream/internal/logger"
	"github.com/tphakala/anomalystream/internal/pipeline"
)

const (
	sqliteSinkName = "sqlite"
	mysqlSinkName  = "mysql"

	// MySQLScheme prefixes a MySQL DSN given in place of a SQLite path.
	MySQLScheme = "mysql://"

	// DefaultBatchSize is the number of rows buffered before an insert.
	DefaultBatchSize = 500

	slowQueryThreshold = 200 * time.Millisecond
)

// ScoreRecord is one row of the anomaly_scores table.
type ScoreRecord struct {
	ID        uint      `gorm:"primaryKey"`
	RunID     string    `gorm:"size:36;index:idx_run_record,priority:1"`
	RecordNum int64     `gorm:"index:idx_run_record,priority:2"`
	Line      int
	Timestamp time.Time
	Value     float64
	Score     float64
	CreatedAt time.Time
}

// TableName overrides the gorm default.
func (ScoreRecord) TableName() string {
	return "anomaly_scores"
}

// SQLiteSink stores every inference of a run in a SQLite database, or in
// MySQL when opened with a mysql:// DSN.
type SQLiteSink struct {
	mu        sync.Mutex
	db        *gorm.DB
	name      string
	path      string
	runID     string
	batch     []ScoreRecord
	batchSize int
	stored    int64
	err       error
	counter   FailureCounter
	log       logger.Logger
}

// NewSQLiteSink opens (creating if needed) the database at path and migrates
// the anomaly_scores table. Rows are tagged with runID. A batchSize below 1
// selects DefaultBatchSize.
func NewSQLiteSink(path, runID string, batchSize int, counter FailureCounter) (*SQLiteSink, error) {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	if counter == nil {
		counter = noopCounter{}
	}

	name, dialector, err := openDialector(path)
	if err != nil {
		return nil, err
	}
	log := GetLogger().Module(name)

	// a MySQL DSN carries credentials and stays out of error context
	target := path
	if name == mysqlSinkName {
		target = MySQLScheme
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, slowQueryThreshold),
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("opening score database: %w", err)).
			Category(errors.CategoryDatabase).
			FileContext(target).
			Build()
	}

	if err := db.AutoMigrate(&ScoreRecord{}); err != nil {
		closeDB(db)
		return nil, errors.New(fmt.Errorf("migrating score database: %w", err)).
			Category(errors.CategoryDatabase).
			FileContext(target).
			Build()
	}

	log.Info("score database ready", logger.String("driver", name), logger.String("run_id", runID))

	return &SQLiteSink{
		db:        db,
		name:      name,
		path:      target,
		runID:     runID,
		batch:     make([]ScoreRecord, 0, batchSize),
		batchSize: batchSize,
		counter:   counter,
		log:       log,
	}, nil
}

// DB returns the underlying connection.
func (s *SQLiteSink) DB() *gorm.DB {
	return s.db
}

func (s *SQLiteSink) OnNext(inf pipeline.Inference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	s.batch = append(s.batch, ScoreRecord{
		RunID:     s.runID,
		RecordNum: inf.RecordNum,
		Line:      inf.Line,
		Timestamp: inf.Timestamp,
		Value:     inf.Value,
		Score:     inf.AnomalyScore,
	})
	if len(s.batch) >= s.batchSize {
		s.flushLocked()
	}
}

// OnError keeps the rows scored before the failure.
func (s *SQLiteSink) OnError(error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *SQLiteSink) OnComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	s.log.Debug("scores stored", logger.Int64("rows", s.stored), logger.String("run_id", s.runID))
}

// Err returns the first insert failure.
func (s *SQLiteSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close flushes pending rows and closes the database.
func (s *SQLiteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
	closeDB(s.db)
	return s.err
}

func (s *SQLiteSink) flushLocked() {
	if s.err != nil || len(s.batch) == 0 {
		return
	}
	if err := s.db.CreateInBatches(s.batch, s.batchSize).Error; err != nil {
		s.err = errors.New(fmt.Errorf("storing scores: %w", err)).
			Category(errors.CategoryDatabase).
			FileContext(s.path).
			Context("run_id", s.runID).
			Build()
		s.counter.SinkError(s.name)
		s.log.Error("storing scores failed", logger.Error(err), logger.Int("rows", len(s.batch)))
		return
	}
	s.stored += int64(len(s.batch))
	s.batch = s.batch[:0]
}

// openDialector selects the gorm driver for path. SQLite files get their
// directory created and run in WAL mode.
func openDialector(path string) (string, gorm.Dialector, error) {
	if dsn, ok := strings.CutPrefix(path, MySQLScheme); ok {
		return mysqlSinkName, mysql.Open(dsn), nil
	}

	if path == ":memory:" {
		return sqliteSinkName, sqlite.Open(path), nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, errors.FileError(fmt.Errorf("creating database directory: %w", err), path)
		}
	}
	return sqliteSinkName, sqlite.Open(path + "?_journal_mode=WAL&_busy_timeout=5000"), nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
