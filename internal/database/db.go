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
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// InitSchema creates all tables when they do not exist yet. The DDL sticks
// to the portable subset shared by MySQL and SQLite: uuid string primary
// keys, VARCHAR timestamps written by the application in UTC, and integer
// presence flags. The UNIQUE constraints back the invariants enforced in the
// repositories: one schedule slot per competition per sector and one
// attendance row per placement/unit pair.
func InitSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(10) NOT NULL,
			created_at VARCHAR(19) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			token_hash VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL,
			expires_at VARCHAR(19) NOT NULL,
			revoked_at VARCHAR(19)
		)`,
		`CREATE TABLE IF NOT EXISTS sectors (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			user_id VARCHAR(36) NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS stages (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			sector_id VARCHAR(36) NOT NULL,
			user_id VARCHAR(36) NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS units (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			sector_id VARCHAR(36) NOT NULL,
			user_id VARCHAR(36) NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(100) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS competitions (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			category_id VARCHAR(36) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS placements (
			id VARCHAR(36) PRIMARY KEY,
			competition_id VARCHAR(36) NOT NULL,
			stage_id VARCHAR(36) NOT NULL,
			sector_id VARCHAR(36) NOT NULL,
			event_date VARCHAR(10) NOT NULL,
			reporting_time VARCHAR(19) NOT NULL,
			start_time VARCHAR(19) NOT NULL,
			end_time VARCHAR(19) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'not_started',
			UNIQUE (competition_id, sector_id)
		)`,
		`CREATE TABLE IF NOT EXISTS attendance (
			id VARCHAR(36) PRIMARY KEY,
			placement_id VARCHAR(36) NOT NULL,
			unit_id VARCHAR(36) NOT NULL,
			participant_1_present INTEGER NOT NULL DEFAULT 0,
			participant_2_present INTEGER NOT NULL DEFAULT 0,
			created_at VARCHAR(19) NOT NULL,
			updated_at VARCHAR(19) NOT NULL,
			UNIQUE (placement_id, unit_id)
		)`,
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
