package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/marketplace-auth/internal/model"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

const userColumns = "id,email,password_hash,role,refresh_token_hash,created_at,updated_at"

// UserRepo persists users in MySQL.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u and fills in its ID and timestamps.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, created_at, updated_at) VALUES (?,?,?,?,?)",
		u.Email, u.PasswordHash, string(u.Role), now, now)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// FindByEmail fetches a user by normalized email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	return scanUser(row)
}

// FindByID fetches a user by id.
func (r *UserRepo) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// UpdateRefreshHash overwrites the stored refresh-token hash in a single
// statement.  A nil hash unbinds the session.
func (r *UserRepo) UpdateRefreshHash(ctx context.Context, id uint64, hash *string) error {
	var v sql.NullString
	if hash != nil {
		v = sql.NullString{String: *hash, Valid: true}
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=?, updated_at=? WHERE id=?",
		v, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// UpdateRole sets the user's role.
func (r *UserRepo) UpdateRole(ctx context.Context, id uint64, role model.Role) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET role=?, updated_at=? WHERE id=?",
		string(role), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u       model.User
		role    string
		refresh sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &refresh, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	if !u.Role.Valid() {
		return nil, fmt.Errorf("user %d has unknown role %q", u.ID, role)
	}
	if refresh.Valid {
		h := refresh.String
		u.RefreshTokenHash = &h
	}
	return &u, nil
}

// expectOneRow maps zero affected rows to ErrNotFound.  The DSN sets
// clientFoundRows so unchanged-but-matched rows still count.
func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
