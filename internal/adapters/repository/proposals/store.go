package proposals

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/daoservice/govsync/internal/domain/config"
)

const sqliteConnOpts = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"

// Store is the gorm-backed proposal repository. One Store is opened per
// process and shared by every use case.
type Store struct {
	db  *gorm.DB
	log *slog.Logger
	now func() time.Time

	// sqlite has no row locks, creations are serialised per DAO here
	daoLocks sync.Map
}

// Open connects to the configured database and migrates the schema
func Open(cfg config.DatabaseConfig, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	log = log.With("component", "ProposalStore")

	gormCfg := &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case config.DatabaseDriverSQLite, "":
		db, err = openSQLite(cfg.DSN, gormCfg)
	case config.DatabaseDriverPostgres:
		db, err = openPostgres(cfg.DSN, gormCfg, log)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:  db,
		log: log,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, model := range MigrateModels {
		log.Debug(fmt.Sprintf("creating table: %T", model))
		if err := db.AutoMigrate(model); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}
	return s, nil
}

// ProvideStore opens the store for Wire and hands back its cleanup
func ProvideStore(cfg *config.RuntimeConfig, log *slog.Logger) (*Store, func(), error) {
	s, err := Open(cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	return s, func() {
		if err := s.Close(); err != nil {
			log.Warn("failed to close proposal store", "error", err)
		}
	}, nil
}

// WithClock overrides the timestamp source, for tests
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func openSQLite(path string, gormCfg *gorm.Config) (*gorm.DB, error) {
	var dsn string
	if path == "" || path == ":memory:" {
		// private shared-cache database per store
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", uuid.NewString(), sqliteConnOpts)
	} else {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?%s", path, sqliteConnOpts)
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// one writer at a time
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func openPostgres(dsn string, gormCfg *gorm.Config, log *slog.Logger) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	var db *gorm.DB
	err := retry.Do(
		func() error {
			var err error
			db, err = gorm.Open(postgres.New(postgres.Config{
				DSN:                  dsn,
				PreferSimpleProtocol: true,
			}), gormCfg)
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return sqlDB.PingContext(ctx)
		},
		retry.Attempts(5),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("postgres not ready, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

func (s *Store) lockDAO(daoID string) func() {
	v, _ := s.daoLocks.LoadOrStore(daoID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
