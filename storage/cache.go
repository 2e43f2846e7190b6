package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Hasinur3813/task-manager-server/domain"
)

// tasksVersionTTL keeps a listing version counter alive well past any
// in-flight listing read.
const tasksVersionTTL = 24 * time.Hour

var errListingChanged = errors.New("task listing changed while it was read")

type backend interface {
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	InsertUser(ctx context.Context, u domain.User) (domain.InsertResult, error)
	InsertTask(ctx context.Context, in domain.TaskInput) (domain.InsertResult, error)
	FetchTaskGroups(ctx context.Context, email string) ([]domain.TaskGroup, error)
	DeleteTask(ctx context.Context, id primitive.ObjectID) (domain.DeleteResult, error)
	UpdateTaskWithPreviousOwner(ctx context.Context, id primitive.ObjectID, in domain.TaskInput) (*domain.Task, string, error)
	MoveTask(ctx context.Context, id primitive.ObjectID, category string) (*domain.Task, error)
	FetchTask(ctx context.Context, id primitive.ObjectID) (*domain.Task, error)
	Ping(ctx context.Context) error
}

// Cache wraps a backend with Redis caching of grouped task listings. Writes
// go straight to the backend and evict the listing of the affected user.
type Cache struct {
	backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{backend: base, redis: client, ttl: ttl}
}

// cachedGroups is the Redis value layout. BSON keeps the stored types of
// task attributes (dates, ids, integers) intact across the round trip.
type cachedGroups struct {
	Groups []domain.TaskGroup `bson:"groups"`
}

func (c *Cache) FetchTaskGroups(ctx context.Context, email string) ([]domain.TaskGroup, error) {
	if groups, ok := c.loadGroups(ctx, email); ok {
		return groups, nil
	}

	// The version is read before the backend so a write that lands while
	// the listing is being read keeps the older snapshot out of the cache.
	version, versionErr := c.listingVersion(ctx, c.redis, email)
	groups, err := c.backend.FetchTaskGroups(ctx, email)
	if err != nil {
		return nil, err
	}

	if versionErr == nil {
		c.storeGroups(ctx, email, version, groups)
	}
	return groups, nil
}

func (c *Cache) InsertTask(ctx context.Context, in domain.TaskInput) (domain.InsertResult, error) {
	res, err := c.backend.InsertTask(ctx, in)
	if err != nil {
		return res, err
	}
	if in.HasUser {
		c.evict(ctx, in.User)
	}
	return res, nil
}

func (c *Cache) DeleteTask(ctx context.Context, id primitive.ObjectID) (domain.DeleteResult, error) {
	res, err := c.backend.DeleteTask(ctx, id)
	if err != nil {
		return res, err
	}
	if res.DeletedCount > 0 {
		c.evict(ctx, res.Owner)
	}
	return res, nil
}

func (c *Cache) UpdateTask(ctx context.Context, id primitive.ObjectID, in domain.TaskInput) (*domain.Task, error) {
	task, previousOwner, err := c.backend.UpdateTaskWithPreviousOwner(ctx, id, in)
	// The write may have landed even when reading the result back failed.
	if previousOwner != "" {
		c.evict(ctx, previousOwner)
	}
	if err != nil {
		return nil, err
	}
	if task != nil && task.User != previousOwner {
		c.evict(ctx, task.User)
	}
	return task, nil
}

func (c *Cache) MoveTask(ctx context.Context, id primitive.ObjectID, category string) (*domain.Task, error) {
	task, err := c.backend.MoveTask(ctx, id, category)
	if err != nil {
		return nil, err
	}
	if task != nil {
		c.evict(ctx, task.User)
	}
	return task, nil
}

func (c *Cache) loadGroups(ctx context.Context, email string) ([]domain.TaskGroup, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey(email)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			log.WithError(err).Debug("task cache read failed")
			_ = c.redis.Del(ctx, tasksCacheKey(email)).Err()
		}
		return nil, false
	}
	var cached cachedGroups
	if err := decodeCached(data, &cached); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey(email)).Err()
		return nil, false
	}
	if cached.Groups == nil {
		cached.Groups = []domain.TaskGroup{}
	}
	return cached.Groups, true
}

func (c *Cache) storeGroups(ctx context.Context, email string, version int64, groups []domain.TaskGroup) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := bson.Marshal(cachedGroups{Groups: groups})
	if err != nil {
		return
	}
	err = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := c.listingVersion(ctx, tx, email)
		if err != nil {
			return err
		}
		if current != version {
			return errListingChanged
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, tasksCacheKey(email), data, c.ttl)
			return nil
		})
		return err
	}, tasksVersionKey(email))
	if err != nil && !errors.Is(err, errListingChanged) && !errors.Is(err, redis.TxFailedErr) {
		log.WithError(err).Debug("task cache write failed")
	}
}

// evict bumps the listing version of email and drops its cached listing.
func (c *Cache) evict(ctx context.Context, email string) {
	if c.redis == nil || email == "" {
		return
	}
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, tasksVersionKey(email))
		pipe.Expire(ctx, tasksVersionKey(email), tasksVersionTTL)
		pipe.Del(ctx, tasksCacheKey(email))
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("email", email).Warn("task cache eviction failed")
	}
}

// listingVersion returns the number of writes seen for the listing of email.
// A missing counter reads as zero.
func (c *Cache) listingVersion(ctx context.Context, cmd redis.Cmdable, email string) (int64, error) {
	if c.redis == nil {
		return 0, nil
	}
	version, err := cmd.Get(ctx, tasksVersionKey(email)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return version, err
}

// decodeCached decodes nested documents as maps so attributes render as
// JSON objects, matching what the backend returns.
func decodeCached(data []byte, out *cachedGroups) error {
	dec, err := bson.NewDecoder(bsonrw.NewBSONDocumentReader(data))
	if err != nil {
		return err
	}
	dec.DefaultDocumentM()
	return dec.Decode(out)
}

func tasksCacheKey(email string) string {
	return "tasks:" + email
}

func tasksVersionKey(email string) string {
	return "tasks-version:" + email
}
