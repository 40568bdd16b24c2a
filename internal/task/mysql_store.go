package task

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	xerrors "AgentKit-Chain/internal/errors"

	"github.com/go-sql-driver/mysql"
)

// MySQLConfig 描述 MySQL 任务存储的连接参数。
type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// MySQLStore 使用 MySQL 记录任务状态。
type MySQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewMySQLStore 连接数据库并执行内嵌迁移。
func NewMySQLStore(ctx context.Context, cfg MySQLConfig) (*MySQLStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}
	db.SetMaxOpenConns(orDefault(cfg.MaxOpenConns, 20))
	db.SetMaxIdleConns(orDefault(cfg.MaxIdleConns, 10))
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}
	store, err := newMySQLStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func newMySQLStore(ctx context.Context, db *sql.DB) (*MySQLStore, error) {
	if err := migrate(ctx, db, defaultMigrations); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "执行数据库迁移失败")
	}
	return &MySQLStore{db: db, now: time.Now}, nil
}

const taskColumns = `id, goal, metadata, status, attempts, max_retries, last_error, error_code,
        result_reply, result_steps, result_network, result_wallet, created_at, updated_at`

// Create 插入新的任务记录。
func (s *MySQLStore) Create(ctx context.Context, task *Task) error {
	if task == nil || strings.TrimSpace(task.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "任务 ID 不能为空")
	}
	metadata, err := marshalNullable(task.Metadata, len(task.Metadata) == 0)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码任务 metadata 失败")
	}
	now := s.now().Unix()
	task.CreatedAt, task.UpdatedAt = now, now

	_, err = s.db.ExecContext(ctx, `INSERT INTO task_states
        (id, goal, metadata, status, attempts, max_retries, last_error, error_code, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, '', '', ?, ?)`,
		task.ID, task.Goal, metadata, string(task.Status), task.Attempts, task.MaxRetries, now, now)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrTaskConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入任务失败")
	}
	return nil
}

// Get 查询指定任务。
func (s *MySQLStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM task_states WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询任务失败")
	}
	return task, nil
}

// Claim 原子地将任务置为运行中并返回最新状态。
func (s *MySQLStore) Claim(ctx context.Context, id string) (*Task, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE task_states
        SET status = ?, attempts = attempts + 1, updated_at = ?, last_error = '', error_code = ''
        WHERE id = ? AND status IN (?, ?) AND attempts < max_retries`,
		string(StatusRunning), s.now().Unix(), id, string(StatusPending), string(StatusFailed))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新任务状态失败")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "获取影响行数失败")
	}
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected > 0 {
		return task, nil
	}
	switch {
	case task.Status == StatusSucceeded:
		return task, ErrTaskCompleted
	case task.Status != StatusRunning && task.Attempts >= task.MaxRetries:
		return task, ErrTaskExhausted
	default:
		return task, ErrTaskConflict
	}
}

// MarkSucceeded 将任务标记为成功。
func (s *MySQLStore) MarkSucceeded(ctx context.Context, id string, result ExecutionResult) error {
	steps, err := marshalNullable(result.Steps, len(result.Steps) == 0)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码执行步骤失败")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE task_states
        SET status = ?, result_reply = ?, result_steps = ?, result_network = ?, result_wallet = ?,
        updated_at = ?, last_error = '', error_code = '' WHERE id = ?`,
		string(StatusSucceeded), result.Reply, steps, result.Network, result.WalletAddress, s.now().Unix(), id)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "标记任务成功失败")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// MarkFailed 将任务标记为失败，terminal 时耗尽剩余重试次数。
func (s *MySQLStore) MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string, terminal bool) error {
	stmt := `UPDATE task_states SET status = ?, last_error = ?, error_code = ?, updated_at = ? WHERE id = ?`
	if terminal {
		stmt = `UPDATE task_states SET status = ?, last_error = ?, error_code = ?, updated_at = ?,
        attempts = GREATEST(attempts, max_retries) WHERE id = ?`
	}
	res, err := s.db.ExecContext(ctx, stmt, string(StatusFailed), lastError, string(code), s.now().Unix(), id)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "标记任务失败失败")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// List 按过滤条件分页返回任务。
func (s *MySQLStore) List(ctx context.Context, opts ListOptions) ([]*Task, error) {
	opts.applyDefaults()

	query := `SELECT ` + taskColumns + ` FROM task_states`
	clause, args := filterClause(opts)
	if clause != "" {
		query += " WHERE " + clause
	}
	if opts.Order == SortByUpdatedAsc {
		query += " ORDER BY updated_at ASC, created_at ASC, id ASC"
	} else {
		query += " ORDER BY updated_at DESC, created_at DESC, id DESC"
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询任务列表失败")
	}
	defer rows.Close()

	tasks := make([]*Task, 0, opts.Limit)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析任务记录失败")
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历任务失败")
	}
	return tasks, nil
}

// Stats 返回符合过滤条件的任务聚合信息。
func (s *MySQLStore) Stats(ctx context.Context, opts ListOptions) (TaskStats, error) {
	opts.applyDefaults()

	query := `SELECT COUNT(*),
        COALESCE(SUM(status = ?), 0), COALESCE(SUM(status = ?), 0),
        COALESCE(SUM(status = ?), 0), COALESCE(SUM(status = ?), 0),
        COALESCE(MIN(updated_at), 0), COALESCE(MAX(updated_at), 0)
        FROM task_states`
	clause, filterArgs := filterClause(opts)
	if clause != "" {
		query += " WHERE " + clause
	}
	args := append([]any{string(StatusPending), string(StatusRunning), string(StatusSucceeded), string(StatusFailed)}, filterArgs...)

	var stats TaskStats
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Total, &stats.Pending, &stats.Running, &stats.Succeeded, &stats.Failed,
		&stats.OldestUpdatedAt, &stats.NewestUpdatedAt,
	); err != nil {
		return TaskStats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询任务统计失败")
	}
	return stats, nil
}

// Close 关闭底层数据库连接。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		task                Task
		status              string
		metadata, lastError sql.NullString
		reply, steps        sql.NullString
		result              ExecutionResult
	)
	if err := row.Scan(&task.ID, &task.Goal, &metadata, &status, &task.Attempts, &task.MaxRetries,
		&lastError, &task.ErrorCode, &reply, &steps, &result.Network, &result.WalletAddress,
		&task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}
	task.Status = Status(status)
	task.LastError = lastError.String
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &task.Metadata); err != nil {
			return nil, fmt.Errorf("解析任务 metadata 失败: %w", err)
		}
	}
	result.Reply = reply.String
	if steps.Valid && steps.String != "" {
		if err := json.Unmarshal([]byte(steps.String), &result.Steps); err != nil {
			return nil, fmt.Errorf("解析执行步骤失败: %w", err)
		}
	}
	if !result.empty() {
		task.Result = &result
	}
	return &task, nil
}

func marshalNullable(v any, empty bool) (sql.NullString, error) {
	if empty {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func filterClause(opts ListOptions) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if len(opts.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(opts.Statuses)), ",")
		conditions = append(conditions, "status IN ("+placeholders+")")
		for _, status := range opts.Statuses {
			args = append(args, string(status))
		}
	}
	if opts.UpdatedGTE > 0 {
		conditions = append(conditions, "updated_at >= ?")
		args = append(args, opts.UpdatedGTE)
	}
	if opts.UpdatedLTE > 0 {
		conditions = append(conditions, "updated_at <= ?")
		args = append(args, opts.UpdatedLTE)
	}
	if opts.HasResult != nil {
		if *opts.HasResult {
			conditions = append(conditions, "(COALESCE(result_reply, '') <> '' OR result_steps IS NOT NULL)")
		} else {
			conditions = append(conditions, "(COALESCE(result_reply, '') = '' AND result_steps IS NULL)")
		}
	}
	if opts.Query != "" {
		pattern := "%" + opts.Query + "%"
		conditions = append(conditions, "(goal LIKE ? OR result_reply LIKE ? OR last_error LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	return strings.Join(conditions, " AND "), args
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

var _ Store = (*MySQLStore)(nil)
