package api

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Hasinur3813/task-manager-server/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	InsertUser(ctx context.Context, u domain.User) (domain.InsertResult, error)
	InsertTask(ctx context.Context, in domain.TaskInput) (domain.InsertResult, error)
	FetchTaskGroups(ctx context.Context, email string) ([]domain.TaskGroup, error)
	DeleteTask(ctx context.Context, id primitive.ObjectID) (domain.DeleteResult, error)
	UpdateTask(ctx context.Context, id primitive.ObjectID, in domain.TaskInput) (*domain.Task, error)
	MoveTask(ctx context.Context, id primitive.ObjectID, category string) (*domain.Task, error)
	FetchTask(ctx context.Context, id primitive.ObjectID) (*domain.Task, error)
	Ping(ctx context.Context) error
}

// LoginGuard serializes get-or-create logins for the same email across
// instances.
type LoginGuard interface {
	// Acquire takes the lock for email and returns true when it was taken.
	Acquire(ctx context.Context, email string) (bool, error)
	// Release drops a lock previously taken with Acquire.
	Release(ctx context.Context, email string) error
}
