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

// Meeting 归档的会议记录
type Meeting struct {
	ID        int64                `json:"id"`
	Topic     string               `json:"topic"`
	Source    domain.Source        `json:"source"`
	Record    domain.MeetingRecord `json:"record"`
	RawInput  string               `json:"rawInput"`
	CreatedAt time.Time            `json:"createdAt"`
}

type MeetingModel struct {
	db *sql.DB
}

func NewMeetingModel(db *sql.DB) *MeetingModel {
	return &MeetingModel{db: db}
}

// Save 归档会议记录及其原始输入
func (m *MeetingModel) Save(ctx context.Context, record *domain.MeetingRecord, raw string) (int64, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return 0, fmt.Errorf("序列化会议记录失败: %w", err)
	}

	query := `INSERT INTO meetings (topic, source_type, reference, record, raw_input, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := m.db.ExecContext(ctx, query,
		record.Topic,
		string(record.Source.Type),
		record.Source.Reference,
		string(data),
		raw,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("保存会议记录失败: %w", err)
	}
	return res.LastInsertId()
}

// Get 查询单条归档
func (m *MeetingModel) Get(ctx context.Context, id int64) (*Meeting, error) {
	query := `SELECT id, topic, source_type, reference, record, raw_input, created_at
		FROM meetings WHERE id = ?`
	meeting, err := scanMeeting(m.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: meeting %d", domain.ErrNotFound, id)
	}
	return meeting, err
}

// List 按时间倒序列出归档，limit <= 0 表示不限制
func (m *MeetingModel) List(ctx context.Context, limit int) ([]*Meeting, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT id, topic, source_type, reference, record, raw_input, created_at
		FROM meetings ORDER BY id DESC LIMIT ?`
	rows, err := m.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("查询会议记录失败: %w", err)
	}
	defer rows.Close()

	meetings := make([]*Meeting, 0)
	for rows.Next() {
		meeting, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, meeting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历会议记录失败: %w", err)
	}
	return meetings, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row scanner) (*Meeting, error) {
	var meeting Meeting
	var sourceType, record, createdAt string
	err := row.Scan(&meeting.ID, &meeting.Topic, &sourceType, &meeting.Source.Reference, &record, &meeting.RawInput, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("读取会议记录失败: %w", err)
	}

	meeting.Source.Type = domain.SourceType(sourceType)
	if err := json.Unmarshal([]byte(record), &meeting.Record); err != nil {
		return nil, fmt.Errorf("解析会议记录 %d 失败: %w", meeting.ID, err)
	}
	meeting.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("解析会议记录 %d 时间失败: %w", meeting.ID, err)
	}
	return &meeting, nil
}
