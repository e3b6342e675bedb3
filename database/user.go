package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/surgekit/surge/internal/apierror"
	"github.com/surgekit/surge/model"
)

func (d Datasource) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	u.CreatedAt = time.Now()

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO users (username, password, phone, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, u.Username, u.Password, u.Phone, u.Status, u.CreatedAt).Scan(&u.ID)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			if pqErr.Constraint == "users_phone_key" {
				return nil, apierror.NewFromCode(apierror.CodePhoneExists)
			}
			return nil, apierror.NewFromCode(apierror.CodeUserExists)
		}
		return nil, apierror.New(apierror.CodeSystemError, "failed to create user", err.Error())
	}

	return u, nil
}

func (d Datasource) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u := model.User{}
	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, username, password, phone, status, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.Password, &u.Phone, &u.Status, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewFromCode(apierror.CodeUserNotExist)
		}
		return nil, apierror.New(apierror.CodeSystemError, "failed to retrieve user", err.Error())
	}
	return &u, nil
}

func (d Datasource) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u := model.User{}
	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, username, password, phone, status, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.Password, &u.Phone, &u.Status, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewFromCode(apierror.CodeUserNotExist)
		}
		return nil, apierror.New(apierror.CodeSystemError, "failed to retrieve user", err.Error())
	}
	return &u, nil
}
