package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// Memory is the long-lived sqlite-backed fact store. From the orchestrator's
// point of view it is append-only: facts and execution records are written
// once and only ever read back.
type Memory struct {
	DB *sql.DB
}

func NewMemory(dbPath string) (*Memory, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS facts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT,
			content TEXT,
			source TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			project_type TEXT,
			path TEXT,
			description TEXT,
			status TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS executions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			step_id INTEGER,
			agent TEXT,
			success INTEGER,
			answer_preview TEXT,
			browse_retry INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS scheduled_goals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT,
			goal TEXT,
			interval_seconds INTEGER,
			last_run DATETIME,
			status TEXT DEFAULT 'active'
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return nil, err
		}
	}

	return &Memory{DB: db}, nil
}

// StoreFact appends one fact.
func (m *Memory) StoreFact(kind, content, source string) error {
	query := `INSERT INTO facts (kind, content, source) VALUES (?, ?, ?)`
	_, err := m.DB.Exec(query, kind, content, source)
	return err
}

// ContextFor returns a short digest of recent facts whose content overlaps
// the topic's keywords, formatted for direct embedding in a prompt. Empty
// when nothing relevant is stored.
func (m *Memory) ContextFor(topic string) string {
	keywords := topicKeywords(topic)
	if len(keywords) == 0 {
		return ""
	}

	var conditions []string
	var args []any
	for _, kw := range keywords {
		conditions = append(conditions, "content LIKE ?")
		args = append(args, "%"+kw+"%")
	}
	query := fmt.Sprintf(
		`SELECT kind, content FROM facts WHERE %s ORDER BY created_at DESC LIMIT 5`,
		strings.Join(conditions, " OR "))

	rows, err := m.DB.Query(query, args...)
	if err != nil {
		return ""
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var kind, content string
		if err := rows.Scan(&kind, &content); err != nil {
			return ""
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s", kind, content))
	}
	if len(lines) == 0 {
		return ""
	}
	return "Relevant long-term memory:\n" + strings.Join(lines, "\n")
}

// topicKeywords keeps the words long enough to be discriminating.
func topicKeywords(topic string) []string {
	var out []string
	for _, w := range strings.Fields(topic) {
		w = strings.Trim(w, ".,:;!?'\"()[]")
		if len(w) >= 5 {
			out = append(out, w)
		}
		if len(out) == 5 {
			break
		}
	}
	return out
}

// StoreProject records the outcome of one run.
func (m *Memory) StoreProject(name, projectType, path, description, status string) error {
	query := `INSERT INTO projects (name, project_type, path, description, status) VALUES (?, ?, ?, ?, ?)`
	_, err := m.DB.Exec(query, name, projectType, path, description, status)
	return err
}

// AppendExecution persists one dispatch-log entry.
func (m *Memory) AppendExecution(stepID int, agent string, success bool, preview string, browseRetry bool) error {
	query := `INSERT INTO executions (step_id, agent, success, answer_preview, browse_retry) VALUES (?, ?, ?, ?, ?)`
	_, err := m.DB.Exec(query, stepID, agent, boolInt(success), preview, boolInt(browseRetry))
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ScheduledGoal is one recurring (or one-shot, interval 0) goal.
type ScheduledGoal struct {
	ID              int
	ChatID          string
	Goal            string
	IntervalSeconds int
	LastRun         time.Time
}

// AddGoal schedules a goal. Interval 0 means run once and delete.
func (m *Memory) AddGoal(chatID, goal string, intervalSeconds int) error {
	query := `INSERT INTO scheduled_goals (chat_id, goal, interval_seconds, last_run) VALUES (?, ?, ?, datetime('now', '-365 days'))`
	_, err := m.DB.Exec(query, chatID, goal, intervalSeconds)
	return err
}

// DueGoals returns every active goal whose interval has elapsed since its
// last run.
func (m *Memory) DueGoals() ([]ScheduledGoal, error) {
	query := `
		SELECT id, chat_id, goal, interval_seconds
		FROM scheduled_goals
		WHERE status = 'active'
		AND (last_run IS NULL OR (julianday('now') - julianday(last_run)) * 86400 >= interval_seconds)`
	rows, err := m.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []ScheduledGoal
	for rows.Next() {
		var g ScheduledGoal
		if err := rows.Scan(&g.ID, &g.ChatID, &g.Goal, &g.IntervalSeconds); err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// MarkGoalRun stamps the goal's last run time.
func (m *Memory) MarkGoalRun(id int) error {
	query := `UPDATE scheduled_goals SET last_run = datetime('now') WHERE id = ?`
	_, err := m.DB.Exec(query, id)
	return err
}

// DeleteGoal removes one scheduled goal.
func (m *Memory) DeleteGoal(chatID string, id int) error {
	query := `DELETE FROM scheduled_goals WHERE chat_id = ? AND id = ?`
	_, err := m.DB.Exec(query, chatID, id)
	return err
}

// ClearGoals removes every scheduled goal for a chat.
func (m *Memory) ClearGoals(chatID string) error {
	query := `DELETE FROM scheduled_goals WHERE chat_id = ?`
	_, err := m.DB.Exec(query, chatID)
	return err
}

// Close releases the database handle.
func (m *Memory) Close() error {
	return m.DB.Close()
}
