package datastore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agrisense/farm-advisor/internal/conf"
	"github.com/agrisense/farm-advisor/internal/errors"
	"github.com/agrisense/farm-advisor/internal/logger"
)

const defaultMongoTimeout = 10 * time.Second

// MongoStore is a CredentialStore on a MongoDB collection with a unique
// index on username.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

// OpenMongo connects, pings and ensures the username index.
func OpenMongo(ctx context.Context, settings conf.MongoDBSettings) (*MongoStore, error) {
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = defaultMongoTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(settings.URI).SetTimeout(timeout))
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryNetwork).
			Context("backend", "mongodb").
			Build()
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryNetwork).
			Context("backend", "mongodb").
			Context("operation", "ping").
			Build()
	}

	store := &MongoStore{
		client:     client,
		collection: client.Database(settings.Database).Collection(settings.Collection),
		timeout:    timeout,
	}
	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	GetLogger().Info("MongoDB credential store opened",
		logger.String("database", settings.Database),
		logger.String("collection", settings.Collection))
	return store, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("username_unique"),
	})
	if err != nil {
		return dbError("create-index", err)
	}
	return nil
}

// FindUser looks a user up by exact username.
func (s *MongoStore) FindUser(ctx context.Context, username string) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var user User
	err := s.collection.FindOne(ctx, bson.D{{Key: "username", Value: username}}).Decode(&user)
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, notFound(username)
	default:
		return nil, dbError("find-user", err)
	}
}

// InsertUser inserts user; the unique index rejects a taken username.
func (s *MongoStore) InsertUser(ctx context.Context, user *User) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if _, err := s.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicate(user.Username, err)
		}
		return dbError("insert-user", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
