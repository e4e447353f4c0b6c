package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-storeauth"
)

// Users is the bun backed auth.UserStore
type Users struct {
	repo repository.Repository[*auth.User]
	db   bun.IDB
}

var _ auth.UserStore = (*Users)(nil)

// NewUsersRepository returns a Users repository on db
func NewUsersRepository(db *bun.DB) *Users {
	repo := repository.NewRepository[*auth.User](db, repository.ModelHandlers[*auth.User]{
		NewRecord: func() *auth.User { return &auth.User{} },
		GetID: func(u *auth.User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *auth.User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})
	return &Users{repo: repo, db: db}
}

// WithTx returns a copy of r whose queries run on tx
func (r *Users) WithTx(tx bun.IDB) *Users {
	return &Users{repo: r.repo, db: tx}
}

// FindByID returns the user with id or auth.ErrUserNotFound
func (r *Users) FindByID(ctx context.Context, id string) (*auth.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, auth.ErrUserNotFound
	}

	user := new(auth.User)
	err = r.db.NewSelect().
		Model(user).
		Where("?TableAlias.id = ?", uid).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, r.mapErr(err, "find by id")
	}
	return user, nil
}

// FindByEmail returns the user with email or auth.ErrUserNotFound
func (r *Users) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	user := new(auth.User)
	err := r.db.NewSelect().
		Model(user).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, r.mapErr(err, "find by email")
	}
	return user, nil
}

// Insert stores a new user. A duplicate email yields auth.ErrEmailTaken.
func (r *Users) Insert(ctx context.Context, user *auth.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if _, err := r.repo.CreateTx(ctx, r.db, user); err != nil {
		if isUniqueViolation(err) || r.emailExists(ctx, user.Email) {
			return auth.ErrEmailTaken.Wrap(err)
		}
		return oops.Code("STORE_INSERT_FAILED").With("operation", "insert user").Wrap(err)
	}
	return nil
}

// Update writes the given columns of user, or every column when none are named
func (r *Users) Update(ctx context.Context, user *auth.User, columns ...string) error {
	q := r.db.NewUpdate().Model(user).WherePK()
	if len(columns) > 0 {
		q = q.Column(columns...)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return oops.Code("STORE_UPDATE_FAILED").With("operation", "update user").Wrap(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

// Delete removes the user with id
func (r *Users) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return auth.ErrUserNotFound
	}
	res, err := r.db.NewDelete().
		Model((*auth.User)(nil)).
		Where("id = ?", uid).
		Exec(ctx)
	if err != nil {
		return oops.Code("STORE_DELETE_FAILED").With("operation", "delete user").Wrap(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

// Count returns the number of users
func (r *Users) Count(ctx context.Context) (int, error) {
	n, err := r.db.NewSelect().Model((*auth.User)(nil)).Count(ctx)
	if err != nil {
		return 0, oops.Code("STORE_COUNT_FAILED").With("operation", "count users").Wrap(err)
	}
	return n, nil
}

func (r *Users) emailExists(ctx context.Context, email string) bool {
	exists, err := r.db.NewSelect().
		Model((*auth.User)(nil)).
		Where("?TableAlias.email = ?", email).
		Exists(ctx)
	return err == nil && exists
}

func (r *Users) mapErr(err error, operation string) error {
	if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
		return auth.ErrUserNotFound.Wrap(err)
	}
	return oops.Code("STORE_QUERY_FAILED").With("operation", operation).Wrap(err)
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
