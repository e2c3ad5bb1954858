package postgres

import (
	stderrors "errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres:// database driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // file:// source driver

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/pkg/errors"
)

// migration is the subset of *migrate.Migrate the Migrator drives.
type migration interface {
	Up() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(v int) error
	Close() (error, error)
}

// newMigration is a variable to allow mocking in tests.
var newMigration = func(sourceURL, databaseURL string) (migration, error) {
	return migrate.New(sourceURL, databaseURL)
}

// Migrator applies the schema files under SourceURL (e.g. "file://migrations").
type Migrator struct {
	sourceURL   string
	databaseURL string
	logger      logging.Logger
}

func NewMigrator(sourceURL string, cfg PostgresConfig, log logging.Logger) *Migrator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Migrator{sourceURL: sourceURL, databaseURL: BuildDSN(cfg), logger: log.Named("migrator")}
}

func (m *Migrator) open() (migration, error) {
	mig, err := newMigration(m.sourceURL, m.databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	return mig, nil
}

// Up applies every pending migration. No pending migration is not an error.
func (m *Migrator) Up() error {
	mig, err := m.open()
	if err != nil {
		return err
	}
	defer mig.Close()

	if err := mig.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to run migrations")
	}
	version, dirty, _ := mig.Version()
	m.logger.Info("migrations applied", logging.Int64("version", int64(version)), logging.Bool("dirty", dirty))
	return nil
}

// Down rolls back steps migrations.
func (m *Migrator) Down(steps int) error {
	if steps <= 0 {
		return errors.Newf(errors.ErrCodeValidation, "steps must be greater than 0, got %d", steps)
	}
	mig, err := m.open()
	if err != nil {
		return err
	}
	defer mig.Close()

	if err := mig.Steps(-steps); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			return errors.New(errors.ErrCodeDatabaseError, "no migrations to roll back")
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to roll back migrations")
	}
	return nil
}

// Status returns the applied version and whether a migration failed midway.
// A database with no migrations reports version 0.
func (m *Migrator) Status() (version uint, dirty bool, err error) {
	mig, err := m.open()
	if err != nil {
		return 0, false, err
	}
	defer mig.Close()

	version, dirty, err = mig.Version()
	if err != nil {
		if stderrors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read migration version")
	}
	return version, dirty, nil
}

// Force records version as applied without running it. Used to clear a
// dirty state by hand.
func (m *Migrator) Force(version int) error {
	mig, err := m.open()
	if err != nil {
		return err
	}
	defer mig.Close()

	if err := mig.Force(version); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to force migration version")
	}
	return nil
}
