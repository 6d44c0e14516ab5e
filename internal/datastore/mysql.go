package datastore

import (
	"net"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/errors"
	"github.com/brixfix/brixfix-go/internal/logger"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
}

const mysqlConnectTimeout = 10 * time.Second

func validateMySQLConfig(s *conf.MySQLSettings) error {
	if s.Host == "" || s.Database == "" || s.Username == "" {
		return errors.Newf("mysql host, database and username are required").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// mysqlDSN builds the connection string with proper credential escaping.
func mysqlDSN(s *conf.MySQLSettings) string {
	cfg := mysqldrv.NewConfig()
	cfg.User = s.Username
	cfg.Passwd = s.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(s.Host, s.Port)
	cfg.DBName = s.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Timeout = mysqlConnectTimeout
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to MySQL, configures the pool and migrates the schema.
func (store *MySQLStore) Open() error {
	settings := &store.Settings.MySQL
	if err := validateMySQLConfig(settings); err != nil {
		return err
	}

	db, err := gorm.Open(mysql.Open(mysqlDSN(settings)), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(GetLogger(), store.Settings.SlowQuery),
	})
	if err != nil {
		GetLogger().Error("failed to open MySQL database",
			logger.String("host", settings.Host),
			logger.String("port", settings.Port),
			logger.String("database", settings.Database),
			logger.Error(err))
		return dbError(err, "open_mysql", errors.PriorityCritical,
			"host", settings.Host, "database", settings.Database)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "open_mysql", errors.PriorityCritical)
	}
	if store.Settings.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(store.Settings.MaxOpenConns)
	}
	if store.Settings.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(store.Settings.MaxIdleConns)
	}
	if store.Settings.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(store.Settings.ConnMaxLifetime)
	}

	store.DB = db
	GetLogger().Info("connected to mysql database",
		logger.String("host", settings.Host),
		logger.String("database", settings.Database))
	return performAutoMigration(db, store.Debug, "mysql")
}

// Engine returns "mysql".
func (store *MySQLStore) Engine() string { return "mysql" }
