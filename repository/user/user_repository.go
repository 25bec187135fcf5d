package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/ecofinds/marketplace/model"
)

type SQL struct {
	conn *sqlx.DB
}

type UserRepository interface {
	GetByID(ctx context.Context, id uint64) (*model.UserEntity, error)
}

func NewUserRepository(conn *sqlx.DB) UserRepository {
	return &SQL{conn: conn}
}

const getUserByID = `SELECT id, username, email, is_active FROM users WHERE id = ?`

// GetByID returns nil without error when the user does not exist.
func (s *SQL) GetByID(ctx context.Context, id uint64) (*model.UserEntity, error) {
	var u model.UserEntity
	if err := s.conn.GetContext(ctx, &u, s.conn.Rebind(getUserByID), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
