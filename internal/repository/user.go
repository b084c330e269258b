package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/colloil/colloil/internal/model"
)

const userColumns = `id, email, password_hash, name, surname, phone, address, nickname, total_oil_liters::text, created_at`

// CreateUser inserts a new user into the database.
func (q *queries) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, name, surname, phone, address, nickname, total_oil_liters, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10)
	`

	_, err := q.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Surname,
		user.Phone,
		user.Address,
		user.Nickname,
		user.TotalOilLiters.String(),
		user.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
func (q *queries) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return q.getUser(ctx, "by ID", query, id)
}

// GetUserForUpdate retrieves a user and locks the row for the rest of the transaction.
func (q *queries) GetUserForUpdate(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return q.getUser(ctx, "for update", query, id)
}

// GetUserByEmail retrieves a user by their email address.
func (q *queries) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return q.getUser(ctx, "by email", query, email)
}

func (q *queries) getUser(ctx context.Context, op, query string, arg string) (*model.User, error) {
	user, err := scanUser(q.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", op, err)
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
		if value == nil {
			return
		}
		args = append(args, *value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("name", patch.Name)
	add("surname", patch.Surname)
	add("phone", patch.Phone)
	add("address", patch.Address)
	add("nickname", patch.Nickname)

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	user, err := scanUser(q.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user profile: %w", err)
	}
	return user, nil
}

// AddOilLiters increments the balance in a single statement.
func (q *queries) AddOilLiters(ctx context.Context, userID string, liters decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE users
		SET total_oil_liters = total_oil_liters + $2::numeric
		WHERE id = $1
		RETURNING total_oil_liters::text
	`
	return q.updateBalance(ctx, query, userID, liters)
}

// DebitOilLiters decrements the balance in a single statement, never below zero.
func (q *queries) DebitOilLiters(ctx context.Context, userID string, liters decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE users
		SET total_oil_liters = GREATEST(total_oil_liters - $2::numeric, 0)
		WHERE id = $1
		RETURNING total_oil_liters::text
	`
	return q.updateBalance(ctx, query, userID, liters)
}

func (q *queries) updateBalance(ctx context.Context, query, userID string, liters decimal.Decimal) (decimal.Decimal, error) {
	var raw string
	if err := q.db.QueryRow(ctx, query, userID, liters.String()).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to update balance: %w", err)
	}
	return decimal.NewFromString(raw)
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		user   model.User
		liters string
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.Surname,
		&user.Phone,
		&user.Address,
		&user.Nickname,
		&liters,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.TotalOilLiters, err = decimal.NewFromString(liters)
	if err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	return &user, nil
}
