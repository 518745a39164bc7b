// Package db owns the conversations and messages tables. It is the only
// component that touches them.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/fakmal/chatdelon/internal/apperr"
	"github.com/fakmal/chatdelon/internal/config"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		file_name TEXT,
		file_path TEXT,
		file_type TEXT,
		analysis_result TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation
		ON messages(conversation_id, created_at)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id INT AUTO_INCREMENT PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id INT AUTO_INCREMENT PRIMARY KEY,
		conversation_id INT NOT NULL,
		role ENUM('user', 'assistant', 'system') NOT NULL,
		content TEXT,
		file_name VARCHAR(500),
		file_path VARCHAR(500),
		file_type VARCHAR(50),
		analysis_result TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	)`,
}

// Database wraps the SQL connection to either backend. Message ordering
// relies on auto-incrementing keys, never on application sequencing.
type Database struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

// New opens the configured backend and applies the schema.
func New(cfg config.Config, logger *zap.Logger) (*Database, error) {
	var (
		conn *sql.DB
		err  error
	)
	switch cfg.DBDriver {
	case "sqlite3":
		conn, err = openSQLite(cfg.DBPath)
	case "mysql":
		conn, err = openMySQL(cfg)
	default:
		return nil, apperr.New(apperr.KindConfiguration, "unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, err
	}

	d := &Database{db: conn, driver: cfg.DBDriver, logger: logger}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperr.Wrap(apperr.KindStorage, err, "failed to create db directory %s", dir)
		}
	}
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to open sqlite db at %s", path)
	}
	// sqlite handles concurrent writers poorly; serialize on one connection.
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// dbNamePattern constrains the database identifier, which cannot be bound
// as a statement parameter.
var dbNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func openMySQL(cfg config.Config) (*sql.DB, error) {
	if !dbNamePattern.MatchString(cfg.DBName) {
		return nil, apperr.New(apperr.KindConfiguration, "invalid DB_NAME %q", cfg.DBName)
	}

	// Create the database itself first, connecting without a schema.
	addr := fmt.Sprintf("%s:%s@tcp(%s:%d)/", cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort)
	boot, err := sql.Open("mysql", addr)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to connect to mysql at %s:%d", cfg.DBHost, cfg.DBPort)
	}
	_, err = boot.Exec("CREATE DATABASE IF NOT EXISTS `" + cfg.DBName + "`")
	boot.Close()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to create database %s", cfg.DBName)
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to open mysql database %s", cfg.DBName)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, apperr.Wrap(apperr.KindStorage, err, "failed to ping mysql database %s", cfg.DBName)
	}
	return conn, nil
}

// migrate applies the embedded schema statement by statement; the mysql
// driver rejects multi-statement batches.
func (d *Database) migrate() error {
	schema := sqliteSchema
	if d.driver == "mysql" {
		schema = mysqlSchema
	}
	for _, stmt := range schema {
		if _, err := d.db.Exec(stmt); err != nil {
			return apperr.Wrap(apperr.KindStorage, err, "failed to apply schema")
		}
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}
