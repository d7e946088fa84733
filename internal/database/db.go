package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// A single event's traffic is small; a few connections are plenty.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// schema mirrors the JSON document: one table per list, a singleton row
// for powered-by branding and a counters table holding next_serial.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS passes (
		id            BIGINT       NOT NULL PRIMARY KEY,
		serial_number VARCHAR(64)  NOT NULL UNIQUE,
		attendee_name VARCHAR(255) NOT NULL,
		ticket_type   VARCHAR(64)  NOT NULL,
		event_name    VARCHAR(255) NOT NULL,
		event_date    VARCHAR(64)  NOT NULL,
		venue         VARCHAR(255) NOT NULL,
		issued_at     DATETIME(6)  NOT NULL,
		status        VARCHAR(16)  NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS scans (
		serial_number VARCHAR(64) NOT NULL PRIMARY KEY,
		scanned_at    DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS sponsors (
		id       BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name     VARCHAR(255) NOT NULL,
		logo     VARCHAR(255) NOT NULL,
		added_at DATETIME(6)  NOT NULL,
		INDEX idx_sponsors_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS powered_by (
		id         TINYINT      NOT NULL PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		logo       VARCHAR(255) NOT NULL,
		updated_at DATETIME(6)  NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS counters (
		name  VARCHAR(32) NOT NULL PRIMARY KEY,
		value BIGINT      NOT NULL
	) ENGINE=InnoDB`,
}

// Migrate creates the pass tables if they are missing.  Existing tables are
// left untouched.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
