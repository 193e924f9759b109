package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/grading-engine/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25 // default
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5 // default
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Users and progress ---

// EnsureUser creates the user row if it does not exist yet
func (r *PostgresRepository) EnsureUser(ctx context.Context, userID string) error {
	query := `INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

// GetProgress retrieves a user's cumulative progress counters
func (r *PostgresRepository) GetProgress(ctx context.Context, userID string) (*models.UserProgress, error) {
	query := `
		SELECT user_id, total_xp, current_level, updated_at
		FROM user_progress
		WHERE user_id = $1
	`

	var p models.UserProgress
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.TotalXP,
		&p.CurrentLevel,
		&p.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	return &p, nil
}

// AddXP atomically increments the user's total XP and returns the new total
func (r *PostgresRepository) AddXP(ctx context.Context, userID string, amount int) (int, error) {
	query := `
		INSERT INTO user_progress (user_id, total_xp, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET total_xp = user_progress.total_xp + EXCLUDED.total_xp, updated_at = NOW()
		RETURNING total_xp
	`

	var total int
	if err := r.pool.QueryRow(ctx, query, userID, amount).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to add XP: %w", err)
	}
	return total, nil
}

// SetLevel stores the recomputed level for a user
func (r *PostgresRepository) SetLevel(ctx context.Context, userID string, level int) error {
	query := `UPDATE user_progress SET current_level = $2, updated_at = NOW() WHERE user_id = $1`

	if _, err := r.pool.Exec(ctx, query, userID, level); err != nil {
		return fmt.Errorf("failed to set level: %w", err)
	}
	return nil
}

// --- Attempts ---

// CreateAttempt appends one attempt record
func (r *PostgresRepository) CreateAttempt(ctx context.Context, attempt *models.AttemptRecord) error {
	verdictJSON, err := json.Marshal(attempt.SuiteResult)
	if err != nil {
		return fmt.Errorf("failed to marshal suite result: %w", err)
	}

	query := `
		INSERT INTO attempts (id, user_id, task_id, code, suite_result, is_successful, used_hint, solving_time_ms, execution_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.pool.Exec(ctx, query,
		attempt.ID,
		attempt.UserID,
		attempt.TaskID,
		attempt.Code,
		verdictJSON,
		attempt.IsSuccessful,
		attempt.UsedHint,
		attempt.SolvingTimeMs,
		attempt.SuiteResult.ExecutionTimeMs,
		attempt.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

// ListAttempts returns a user's attempts, newest first
func (r *PostgresRepository) ListAttempts(ctx context.Context, userID string, limit, offset int) ([]*models.AttemptRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, task_id, code, suite_result, is_successful, used_hint, solving_time_ms, created_at
		FROM attempts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*models.AttemptRecord
	for rows.Next() {
		var a models.AttemptRecord
		var verdictJSON []byte

		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.TaskID,
			&a.Code,
			&verdictJSON,
			&a.IsSuccessful,
			&a.UsedHint,
			&a.SolvingTimeMs,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}

		if verdictJSON != nil {
			if err := json.Unmarshal(verdictJSON, &a.SuiteResult); err != nil {
				return nil, fmt.Errorf("failed to unmarshal suite result: %w", err)
			}
		}

		attempts = append(attempts, &a)
	}

	return attempts, rows.Err()
}

// CountAttempts counts all attempts of a user against one task
func (r *PostgresRepository) CountAttempts(ctx context.Context, userID, taskID string) (int, error) {
	query := `SELECT COUNT(*) FROM attempts WHERE user_id = $1 AND task_id = $2`

	var n int
	if err := r.pool.QueryRow(ctx, query, userID, taskID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return n, nil
}

// HasSuccessfulAttempt reports whether the user ever solved the task
func (r *PostgresRepository) HasSuccessfulAttempt(ctx context.Context, userID, taskID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM attempts WHERE user_id = $1 AND task_id = $2 AND is_successful)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, taskID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check successful attempt: %w", err)
	}
	return exists, nil
}

// AverageExecutionTime returns the mean suite execution time across all
// successful attempts for the task, 0 when there are none
func (r *PostgresRepository) AverageExecutionTime(ctx context.Context, taskID string) (int64, error) {
	query := `
		SELECT COALESCE(AVG(execution_time_ms), 0)::bigint
		FROM attempts
		WHERE task_id = $1 AND is_successful
	`

	var avg int64
	if err := r.pool.QueryRow(ctx, query, taskID).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to average execution time: %w", err)
	}
	return avg, nil
}

// ListSolvedTasks returns the distinct task IDs the user has solved
func (r *PostgresRepository) ListSolvedTasks(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT DISTINCT task_id FROM attempts WHERE user_id = $1 AND is_successful`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list solved tasks: %w", err)
	}
	defer rows.Close()

	var tasks []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan task id: %w", err)
		}
		tasks = append(tasks, id)
	}

	return tasks, rows.Err()
}

// ListActiveUserIDs returns the users with at least one attempt since the
// given instant. Used by the achievement sweeper.
func (r *PostgresRepository) ListActiveUserIDs(ctx context.Context, since time.Time) ([]string, error) {
	query := `SELECT DISTINCT user_id FROM attempts WHERE created_at >= $1`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		users = append(users, id)
	}

	return users, rows.Err()
}

// --- Modules ---

// MarkModuleCompleted records module completion, idempotently
func (r *PostgresRepository) MarkModuleCompleted(ctx context.Context, userID, moduleID string) error {
	query := `
		INSERT INTO module_progress (user_id, module_id, completed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, module_id) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, userID, moduleID); err != nil {
		return fmt.Errorf("failed to mark module completed: %w", err)
	}
	return nil
}

// CountCompletedModules counts the user's completed modules
func (r *PostgresRepository) CountCompletedModules(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM module_progress WHERE user_id = $1`

	var n int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count completed modules: %w", err)
	}
	return n, nil
}

// --- Achievements ---

// ListActiveAchievements returns all active achievement definitions
func (r *PostgresRepository) ListActiveAchievements(ctx context.Context) ([]*models.AchievementDefinition, error) {
	query := `
		SELECT id, title, description, condition_type, condition_value, xp_reward, is_active
		FROM achievement_definitions
		WHERE is_active
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var defs []*models.AchievementDefinition
	for rows.Next() {
		var d models.AchievementDefinition
		if err := rows.Scan(
			&d.ID,
			&d.Title,
			&d.Description,
			&d.ConditionType,
			&d.ConditionValue,
			&d.XPReward,
			&d.IsActive,
		); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		defs = append(defs, &d)
	}

	return defs, rows.Err()
}

// ListUnlockedAchievementIDs returns the IDs the user has already earned
func (r *PostgresRepository) ListUnlockedAchievementIDs(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT achievement_id FROM user_achievements WHERE user_id = $1`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocked achievements: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan achievement id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ListUserAchievements returns the user's unlock records, newest first
func (r *PostgresRepository) ListUserAchievements(ctx context.Context, userID string) ([]*models.UserAchievement, error) {
	query := `
		SELECT user_id, achievement_id, earned_at
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY earned_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user achievements: %w", err)
	}
	defer rows.Close()

	var earned []*models.UserAchievement
	for rows.Next() {
		var ua models.UserAchievement
		if err := rows.Scan(&ua.UserID, &ua.AchievementID, &ua.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user achievement: %w", err)
		}
		earned = append(earned, &ua)
	}

	return earned, rows.Err()
}

// CreateUserAchievement records an unlock. Returns false when the row
// already exists; the primary key makes concurrent unlocks race-safe.
func (r *PostgresRepository) CreateUserAchievement(ctx context.Context, ua *models.UserAchievement) (bool, error) {
	query := `
		INSERT INTO user_achievements (user_id, achievement_id, earned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query, ua.UserID, ua.AchievementID, ua.EarnedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create user achievement: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// --- Condition counts ---

// CountSuccessfulAttempts counts successful attempt rows. Re-solving the
// same task counts every time; distinct-task totals are a different metric
func (r *PostgresRepository) CountSuccessfulAttempts(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM attempts WHERE user_id = $1 AND is_successful`

	var n int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count successful attempts: %w", err)
	}
	return n, nil
}

// CountSuccessfulAttemptsInHours counts successful attempts whose local
// hour-of-day falls in [start, end), wrapping past midnight when
// start > end
func (r *PostgresRepository) CountSuccessfulAttemptsInHours(ctx context.Context, userID string, start, end int) (int, error) {
	hourExpr := `EXTRACT(HOUR FROM created_at)`

	var query string
	if start <= end {
		query = fmt.Sprintf(`
			SELECT COUNT(*) FROM attempts
			WHERE user_id = $1 AND is_successful AND %s >= $2 AND %s < $3
		`, hourExpr, hourExpr)
	} else {
		query = fmt.Sprintf(`
			SELECT COUNT(*) FROM attempts
			WHERE user_id = $1 AND is_successful AND (%s >= $2 OR %s < $3)
		`, hourExpr, hourExpr)
	}

	var n int
	if err := r.pool.QueryRow(ctx, query, userID, start, end).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count attempts in hours: %w", err)
	}
	return n, nil
}

// CountActiveDays counts distinct calendar days with at least one
// successful attempt
func (r *PostgresRepository) CountActiveDays(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(DISTINCT created_at::date) FROM attempts WHERE user_id = $1 AND is_successful`

	var n int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active days: %w", err)
	}
	return n, nil
}

// CountFirstDayAttempts counts successful attempts within 24 hours of
// the user's registration
func (r *PostgresRepository) CountFirstDayAttempts(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM attempts a
		JOIN users u ON u.id = a.user_id
		WHERE a.user_id = $1 AND a.is_successful
		  AND a.created_at >= u.created_at
		  AND a.created_at < u.created_at + INTERVAL '24 hours'
	`

	var n int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count first day attempts: %w", err)
	}
	return n, nil
}

// CountPerfectSolvedTasks counts distinct tasks whose very first attempt
// by this user was successful
func (r *PostgresRepository) CountPerfectSolvedTasks(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM (
			SELECT DISTINCT ON (task_id) is_successful
			FROM attempts
			WHERE user_id = $1
			ORDER BY task_id, created_at
		) first_attempts
		WHERE is_successful
	`

	var n int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count perfect tasks: %w", err)
	}
	return n, nil
}

// CountNoHintAttempts counts successful attempt rows where no hint was
// used. Row-level like CountSuccessfulAttempts, not per distinct task
func (r *PostgresRepository) CountNoHintAttempts(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM attempts
		WHERE user_id = $1 AND is_successful AND NOT used_hint
	`

	var n int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count no-hint attempts: %w", err)
	}
	return n, nil
}

// --- API clients ---

// GetClientByApiKey retrieves an API client by its key
func (r *PostgresRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	query := `
		SELECT id, name, api_key, is_active, created_at, last_used_at, permissions, metadata
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.ApiClient
	var lastUsedAt sql.NullTime
	var permissionsJSON, metadataJSON []byte

	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.ApiKey,
		&client.IsActive,
		&client.CreatedAt,
		&lastUsedAt,
		&permissionsJSON,
		&metadataJSON,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	if lastUsedAt.Valid {
		client.LastUsedAt = &lastUsedAt.Time
	}

	if permissionsJSON != nil {
		if err := json.Unmarshal(permissionsJSON, &client.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &client.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &client, nil
}

// UpdateClientLastUsed updates the last_used_at timestamp for a client
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	query := `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`

	if _, err := r.pool.Exec(ctx, query, apiKey); err != nil {
		return fmt.Errorf("failed to update client last used: %w", err)
	}
	return nil
}
