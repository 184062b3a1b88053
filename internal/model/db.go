package model

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS meetings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic TEXT NOT NULL,
		source_type TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL DEFAULT '',
		record TEXT NOT NULL,
		raw_input TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_meetings_created_at ON meetings(created_at)`,
	`CREATE TABLE IF NOT EXISTS registered_issues (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		priority TEXT NOT NULL,
		assignee TEXT NOT NULL DEFAULT '',
		estimated_hours REAL NOT NULL DEFAULT 0,
		due_date TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		registered_at TEXT NOT NULL
	)`,
}

// Open 打开 sqlite 数据库并创建表结构，path 为 ":memory:" 时使用内存数据库
func Open(path string) (*sql.DB, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
		dsn = "file:" + path + "?mode=rwc&_journal_mode=WAL&_fk=1"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// sqlite 只允许单个写连接，内存数据库每个连接都是独立的库
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("创建数据库表失败: %w", err)
		}
	}
	return db, nil
}
