package service

import (
	"context"

	"bchat-be/internal/pkg/apperror"
	"bchat-be/internal/repository/memory"
	"bchat-be/internal/repository/specification"
	"bchat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// IUserDirectory resolves display names, backed by a short-lived cache.
type IUserDirectory interface {
	Username(ctx context.Context, userId uuid.UUID) (string, error)
	Forget(userId uuid.UUID)
}

type userDirectory struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *memory.UsernameCache
}

func NewUserDirectory(uowFactory unitofwork.RepositoryFactory, cache *memory.UsernameCache) IUserDirectory {
	return &userDirectory{
		uowFactory: uowFactory,
		cache:      cache,
	}
}

func (d *userDirectory) Username(ctx context.Context, userId uuid.UUID) (string, error) {
	if name, ok := d.cache.Get(userId); ok {
		return name, nil
	}

	uow := d.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", apperror.NotFound("User not found")
	}

	d.cache.Save(userId, user.Username)
	return user.Username, nil
}

func (d *userDirectory) Forget(userId uuid.UUID) {
	d.cache.Delete(userId)
}
