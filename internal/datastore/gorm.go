package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/agrisense/farm-advisor/internal/conf"
	"github.com/agrisense/farm-advisor/internal/errors"
	"github.com/agrisense/farm-advisor/internal/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// GormStore is a CredentialStore on any GORM dialect.
type GormStore struct {
	DB      *gorm.DB
	dialect string
}

// OpenSQLite opens or creates the SQLite database at path. ":memory:" is accepted.
func OpenSQLite(path string) (*GormStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.New(err).
					Component("datastore").
					Category(errors.CategoryFileIO).
					Context("path", path).
					Build()
			}
		}
	}

	store, err := openGorm("sqlite", sqlite.Open(path))
	if err != nil {
		return nil, err
	}

	// SQLite allows one writer; a single connection also keeps ":memory:" databases alive.
	sqlDB, err := store.DB.DB()
	if err != nil {
		return nil, dbError("sqlite-pool", err)
	}
	sqlDB.SetMaxOpenConns(1)

	GetLogger().Info("SQLite credential store opened", logger.String("path", path))
	return store, nil
}

// OpenMySQL connects to the MySQL server described by settings.
func OpenMySQL(settings conf.MySQLSettings) (*GormStore, error) {
	cfg := mysql.NewConfig()
	cfg.User = settings.Username
	cfg.Passwd = settings.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", settings.Host, settings.Port)
	cfg.DBName = settings.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}

	store, err := openGorm("mysql", gormmysql.Open(cfg.FormatDSN()))
	if err != nil {
		return nil, err
	}

	sqlDB, err := store.DB.DB()
	if err != nil {
		return nil, dbError("mysql-pool", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	GetLogger().Info("MySQL credential store opened",
		logger.String("host", settings.Host),
		logger.Int("port", settings.Port),
		logger.String("database", settings.Database))
	return store, nil
}

func openGorm(dialect string, dialector gorm.Dialector) (*GormStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(GetLogger().Module("gorm"), slowQueryThreshold),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open %s database: %w", dialect, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("dialect", dialect).
			Build()
	}

	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, errors.New(fmt.Errorf("failed to migrate %s database: %w", dialect, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("dialect", dialect).
			Build()
	}
	return &GormStore{DB: db, dialect: dialect}, nil
}

// FindUser looks a user up by exact username.
func (s *GormStore) FindUser(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, notFound(username)
	default:
		return nil, dbError("find-user", err)
	}
}

// InsertUser creates user, relying on the unique index to reject duplicates.
func (s *GormStore) InsertUser(ctx context.Context, user *User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if err := s.DB.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return duplicate(user.Username, err)
		}
		return dbError("insert-user", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return dbError("close", err)
	}
	return sqlDB.Close()
}

// isDuplicateKey recognises unique violations from either driver, whether or
// not GORM translated them.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
