//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"pairchat/domain"
	"pairchat/errors"
)

const (
	userKeyPrefix  = "user:"
	emailKeyPrefix = "useremail:"
)

type IUserRepository interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	ListUsers(ctx context.Context, excludeID string) ([]domain.User, error)
}

// UserRepository persists accounts in BadgerDB. Records live under
// "user:{id}"; "useremail:{email}" is a unique secondary index pointing at
// the id, checked inside the same transaction that inserts the record.
type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (u *UserRepository) CreateUser(_ context.Context, username, email, passwordHash string) (domain.User, error) {
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Roles:        []string{"user"},
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(record{User: user, PasswordHash: passwordHash})
	if err != nil {
		return domain.User{}, fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		emailKey := []byte(emailKeyPrefix + strings.ToLower(email))
		if _, err := txn.Get(emailKey); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey, []byte(user.ID)); err != nil {
			return err
		}
		return txn.Set([]byte(userKeyPrefix+user.ID), data)
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (u *UserRepository) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var id string
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(emailKeyPrefix + strings.ToLower(email)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return domain.User{}, errors.ErrUserNotFound
		}
		return domain.User{}, err
	}
	return u.GetUserByID(ctx, id)
}

func (u *UserRepository) GetUserByID(_ context.Context, id string) (domain.User, error) {
	var rec record
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return domain.User{}, errors.ErrUserNotFound
		}
		return domain.User{}, err
	}
	return rec.toUser(), nil
}

func (u *UserRepository) ListUsers(_ context.Context, excludeID string) ([]domain.User, error) {
	var users []domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(userKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			if rec.User.ID == excludeID {
				continue
			}
			users = append(users, rec.toUser())
		}
		return nil
	})
	return users, err
}

// record exists because domain.User hides the password hash from JSON; the
// repository still has to store it.
type record struct {
	domain.User
	PasswordHash string `json:"passwordHash"`
}

func (r record) toUser() domain.User {
	user := r.User
	user.PasswordHash = r.PasswordHash
	return user
}
