// Package database opens the MySQL pool the repositories share.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

// Config identifies the MySQL database.
type Config struct {
	User string
	Pass string
	Host string
	Port string
	Name string
}

// DSN renders cfg for the mysql driver.  parseTime maps DATETIME to
// time.Time and loc=UTC keeps every timestamp in UTC.
func (cfg Config) DSN() string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Pass
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	_ = mc.Apply(mysql.Charset("utf8mb4", ""))
	return mc.FormatDSN()
}

// Open connects to MySQL, retrying while the server comes up, and
// verifies the connection.
func Open(ctx context.Context, cfg Config, attempts int, log *logrus.Entry) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	if attempts < 1 {
		attempts = 1
	}
	for i := 1; i <= attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			log.WithField("host", cfg.Host).Info("database connected")
			return db, nil
		}
		log.WithError(err).WithField("attempt", i).Warn("database not ready")
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	_ = db.Close()
	return nil, fmt.Errorf("connecting to database after %d attempts: %w", attempts, err)
}
