package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/colloil/colloil/internal/model"
	"github.com/colloil/colloil/internal/repository"
)

const userColumns = `id, email, password_hash, name, surname, phone, address, nickname, total_oil_ml, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateUser inserts a new user.
func (q *queries) CreateUser(ctx context.Context, user *model.User) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Surname,
		user.Phone,
		user.Address,
		user.Nickname,
		toMilliliters(user.TotalOilLiters),
		formatTime(user.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by ID.
func (q *queries) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return q.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserForUpdate is GetUserByID; the surrounding IMMEDIATE transaction holds the write lock.
func (q *queries) GetUserForUpdate(ctx context.Context, id string) (*model.User, error) {
	return q.GetUserByID(ctx, id)
}

// GetUserByEmail retrieves a user by email.
func (q *queries) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return q.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (q *queries) getUser(ctx context.Context, query string, arg string) (*model.User, error) {
	user, err := scanUser(q.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateUserProfile applies a partial profile update and returns the updated user.
func (q *queries) UpdateUserProfile(ctx context.Context, id string, patch model.ProfilePatch) (*model.User, error) {
	if patch.IsEmpty() {
		return q.GetUserByID(ctx, id)
	}

	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	add := func(column string, value *string) {
		if value != nil {
			sets = append(sets, column+" = ?")
			args = append(args, *value)
		}
	}
	add("name", patch.Name)
	add("surname", patch.Surname)
	add("phone", patch.Phone)
	add("address", patch.Address)
	add("nickname", patch.Nickname)
	args = append(args, id)

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = ? RETURNING ` + userColumns
	user, err := scanUser(q.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user profile: %w", err)
	}
	return user, nil
}

// AddOilLiters increments the balance in a single statement.
func (q *queries) AddOilLiters(ctx context.Context, userID string, liters decimal.Decimal) (decimal.Decimal, error) {
	return q.updateBalance(ctx,
		`UPDATE users SET total_oil_ml = total_oil_ml + ? WHERE id = ? RETURNING total_oil_ml`,
		userID, liters)
}

// DebitOilLiters decrements the balance in a single statement, never below zero.
func (q *queries) DebitOilLiters(ctx context.Context, userID string, liters decimal.Decimal) (decimal.Decimal, error) {
	return q.updateBalance(ctx,
		`UPDATE users SET total_oil_ml = MAX(total_oil_ml - ?, 0) WHERE id = ? RETURNING total_oil_ml`,
		userID, liters)
}

func (q *queries) updateBalance(ctx context.Context, query, userID string, liters decimal.Decimal) (decimal.Decimal, error) {
	var ml int64
	if err := q.db.QueryRowContext(ctx, query, toMilliliters(liters), userID).Scan(&ml); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, repository.ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to update balance: %w", err)
	}
	return fromMilliliters(ml), nil
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		user      model.User
		ml        int64
		createdAt string
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Surname,
		&user.Phone,
		&user.Address,
		&user.Nickname,
		&ml,
		&createdAt,
	); err != nil {
		return nil, err
	}

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	user.CreatedAt = created
	user.TotalOilLiters = fromMilliliters(ml)
	return &user, nil
}
