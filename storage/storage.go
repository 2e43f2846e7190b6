package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Hasinur3813/task-manager-server/domain"
)

const (
	usersCollection = "users"
	tasksCollection = "tasks"
)

// Storage provides access to the users and tasks collections.
type Storage struct {
	client *mongo.Client
	users  *mongo.Collection
	tasks  *mongo.Collection
}

// New creates a Storage for the given MongoDB URI and database. The driver
// connects lazily; call Ping to verify the deployment is reachable.
func New(ctx context.Context, uri, database string) (*Storage, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1).
		SetStrict(true).
		SetDeprecationErrors(true)
	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(serverAPI).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	db := client.Database(database)
	s := newWithCollections(db.Collection(usersCollection), db.Collection(tasksCollection))
	s.client = client
	return s, nil
}

func newWithCollections(users, tasks *mongo.Collection) *Storage {
	return &Storage{client: users.Database().Client(), users: users, tasks: tasks}
}

// Ping checks that the primary answers.
func (s *Storage) Ping(ctx context.Context) (err error) {
	defer observe("ping", "", time.Now(), &err)
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Storage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the login lookup and the grouped listing
// rely on. Creating an index that already exists is a no-op.
func (s *Storage) EnsureIndexes(ctx context.Context) (err error) {
	defer observe("ensure_indexes", "", time.Now(), &err)

	if _, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("email_1"),
	}); err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	if _, err = s.tasks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}, {Key: "category", Value: 1}},
		Options: options.Index().SetName("user_1_category_1"),
	}); err != nil {
		return fmt.Errorf("create tasks index: %w", err)
	}
	return nil
}

// FindUserByEmail returns the user with the exact email, or nil when there
// is none.
func (s *Storage) FindUserByEmail(ctx context.Context, email string) (user *domain.User, err error) {
	defer observe("find_user", usersCollection, time.Now(), &err)

	var u domain.User
	err = s.users.FindOne(ctx, bson.D{{Key: "email", Value: email}}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// InsertUser stores u as a new document with a fresh id.
func (s *Storage) InsertUser(ctx context.Context, u domain.User) (res domain.InsertResult, err error) {
	defer observe("insert_user", usersCollection, time.Now(), &err)

	u.ID = primitive.NewObjectID()
	if _, err = s.users.InsertOne(ctx, u); err != nil {
		return domain.InsertResult{}, fmt.Errorf("insert user: %w", err)
	}
	return domain.InsertResult{Acknowledged: true, InsertedID: u.ID}, nil
}

// InsertTask stores a new task built from the payload.
func (s *Storage) InsertTask(ctx context.Context, in domain.TaskInput) (res domain.InsertResult, err error) {
	defer observe("insert_task", tasksCollection, time.Now(), &err)

	id := primitive.NewObjectID()
	doc := append(bson.D{{Key: "_id", Value: id}}, in.CreateDocument()...)
	if _, err = s.tasks.InsertOne(ctx, doc); err != nil {
		return domain.InsertResult{}, fmt.Errorf("insert task: %w", err)
	}
	return domain.InsertResult{Acknowledged: true, InsertedID: id}, nil
}

// FetchTaskGroups returns the tasks of the user grouped by category, board
// categories first.
func (s *Storage) FetchTaskGroups(ctx context.Context, email string) (groups []domain.TaskGroup, err error) {
	defer observe("group_tasks", tasksCollection, time.Now(), &err)

	cursor, err := s.tasks.Aggregate(ctx, groupByCategoryPipeline(email))
	if err != nil {
		return nil, fmt.Errorf("aggregate tasks: %w", err)
	}
	groups = []domain.TaskGroup{}
	if err = cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode task groups: %w", err)
	}
	return groups, nil
}

// DeleteTask removes the task with the given id. Deleting an id that does
// not exist is not an error; the result then reports zero deletions.
func (s *Storage) DeleteTask(ctx context.Context, id primitive.ObjectID) (res domain.DeleteResult, err error) {
	defer observe("delete_task", tasksCollection, time.Now(), &err)

	var owner struct {
		User string `bson:"user"`
	}
	opts := options.FindOneAndDelete().SetProjection(bson.D{{Key: "user", Value: 1}})
	err = s.tasks.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: id}}, opts).Decode(&owner)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.DeleteResult{Acknowledged: true}, nil
	}
	if err != nil {
		return domain.DeleteResult{}, fmt.Errorf("delete task: %w", err)
	}
	return domain.DeleteResult{Acknowledged: true, DeletedCount: 1, Owner: owner.User}, nil
}

// UpdateTask applies the payload with $set semantics and returns the
// updated document, or nil when no task has the id.
func (s *Storage) UpdateTask(ctx context.Context, id primitive.ObjectID, in domain.TaskInput) (*domain.Task, error) {
	task, _, err := s.UpdateTaskWithPreviousOwner(ctx, id, in)
	return task, err
}

// UpdateTaskWithPreviousOwner is UpdateTask that also reports the owner the
// task had before the write when the payload reassigns it. previousOwner is
// empty when the owner is left untouched or no task has the id.
func (s *Storage) UpdateTaskWithPreviousOwner(ctx context.Context, id primitive.ObjectID, in domain.TaskInput) (task *domain.Task, previousOwner string, err error) {
	defer observe("update_task", tasksCollection, time.Now(), &err)

	if !in.ReassignsOwner() {
		task, err = s.setFields(ctx, id, in.SetDocument())
		if err != nil {
			return nil, "", fmt.Errorf("update task: %w", err)
		}
		return task, "", nil
	}

	var before struct {
		User string `bson:"user"`
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.D{{Key: "user", Value: 1}})
	update := bson.D{{Key: "$set", Value: in.SetDocument()}}
	err = s.tasks.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, update, opts).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("update task: %w", err)
	}
	task, err = s.findTask(ctx, id)
	if err != nil {
		return nil, before.User, fmt.Errorf("update task: %w", err)
	}
	return task, before.User, nil
}

// MoveTask overwrites only the category of the task and returns the updated
// document, or nil when no task has the id.
func (s *Storage) MoveTask(ctx context.Context, id primitive.ObjectID, category string) (task *domain.Task, err error) {
	defer observe("move_task", tasksCollection, time.Now(), &err)

	task, err = s.setFields(ctx, id, bson.D{{Key: "category", Value: category}})
	if err != nil {
		return nil, fmt.Errorf("move task: %w", err)
	}
	return task, nil
}

func (s *Storage) setFields(ctx context.Context, id primitive.ObjectID, fields bson.D) (*domain.Task, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.D{{Key: "$set", Value: fields}}

	var task domain.Task
	err := s.tasks.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, update, opts).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// FetchTask returns the task with the given id, or nil when there is none.
func (s *Storage) FetchTask(ctx context.Context, id primitive.ObjectID) (task *domain.Task, err error) {
	defer observe("fetch_task", tasksCollection, time.Now(), &err)

	task, err = s.findTask(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch task: %w", err)
	}
	return task, nil
}

func (s *Storage) findTask(ctx context.Context, id primitive.ObjectID) (*domain.Task, error) {
	var t domain.Task
	err := s.tasks.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
