package model

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fachebot/meeting-issue-bot/internal/domain"
)

// RegisteredIssue 已登记到 issue 跟踪表的 issue
type RegisteredIssue struct {
	domain.GeneratedIssue
	RegisteredAt time.Time `json:"registeredAt"`
}

type IssueModel struct {
	db *sql.DB
}

func NewIssueModel(db *sql.DB) *IssueModel {
	return &IssueModel{db: db}
}

// Register 写入已登记的 issue，同一 ID 只能登记一次
func (m *IssueModel) Register(ctx context.Context, issue domain.GeneratedIssue) error {
	payload, err := json.Marshal(issue)
	if err != nil {
		return fmt.Errorf("序列化 issue 失败: %w", err)
	}

	query := `INSERT INTO registered_issues (id, title, priority, assignee, estimated_hours, due_date, payload, registered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = m.db.ExecContext(ctx, query,
		issue.ID,
		issue.Title,
		string(issue.Priority),
		issue.Assignee,
		float64(issue.EstimatedHours),
		issue.DueDate,
		string(payload),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("登记 issue %s 失败: %w", issue.ID, err)
	}
	return nil
}

// Get 查询已登记的 issue
func (m *IssueModel) Get(ctx context.Context, id string) (*RegisteredIssue, error) {
	row := m.db.QueryRowContext(ctx, `SELECT payload, registered_at FROM registered_issues WHERE id = ?`, id)
	issue, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: issue %s", domain.ErrNotFound, id)
	}
	return issue, err
}

// List 按登记时间倒序列出，limit <= 0 表示不限制
func (m *IssueModel) List(ctx context.Context, limit int) ([]*RegisteredIssue, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := m.db.QueryContext(ctx,
		`SELECT payload, registered_at FROM registered_issues ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询已登记 issue 失败: %w", err)
	}
	defer rows.Close()

	list := make([]*RegisteredIssue, 0)
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历已登记 issue 失败: %w", err)
	}
	return list, nil
}

// Count 已登记的 issue 总数
func (m *IssueModel) Count(ctx context.Context) (int, error) {
	var n int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM registered_issues`).Scan(&n); err != nil {
		return 0, fmt.Errorf("统计已登记 issue 失败: %w", err)
	}
	return n, nil
}

func scanIssue(row scanner) (*RegisteredIssue, error) {
	var payload, registeredAt string
	if err := row.Scan(&payload, &registeredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("读取已登记 issue 失败: %w", err)
	}

	var issue RegisteredIssue
	if err := json.Unmarshal([]byte(payload), &issue.GeneratedIssue); err != nil {
		return nil, fmt.Errorf("解析已登记 issue 失败: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, registeredAt)
	if err != nil {
		return nil, fmt.Errorf("解析登记时间失败: %w", err)
	}
	issue.RegisteredAt = t
	return &issue, nil
}
