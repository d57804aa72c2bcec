package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dashboard_report_bot/internal/domain/user"
)

type PostgresUserRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db, now: time.Now}
}

const userColumns = `id, name, group_type, telegram_id, is_deleted, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(&u.ID, &u.Name, &u.Group, &u.TelegramID, &u.IsDeleted, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now()
	}
	u.UpdatedAt = u.CreatedAt
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query, u.ID, u.Name, u.Group, u.TelegramID, u.IsDeleted, utc(u.CreatedAt), utc(u.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", user.ErrDuplicateUser, u.ID)
		}
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by ID: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by Telegram ID: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, u *user.User) error {
	u.UpdatedAt = r.now()
	query := `UPDATE users
               SET name = $1, group_type = $2, telegram_id = $3, is_deleted = $4, updated_at = $5
               WHERE id = $6`
	res, err := r.db.ExecContext(ctx, query, u.Name, u.Group, u.TelegramID, u.IsDeleted, utc(u.UpdatedAt), u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: telegram id %d", user.ErrDuplicateUser, u.TelegramID.Int64)
		}
		return fmt.Errorf("error updating user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepository) ListAll(ctx context.Context) ([]*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	users := make([]*user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}
