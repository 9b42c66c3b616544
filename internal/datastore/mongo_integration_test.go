//go:build integration

package datastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/agrisense/farm-advisor/internal/conf"
)

func TestMongoStore_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := tcmongo.Run(ctx, "mongo:7")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	require.NoError(t, err)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	store, err := OpenMongo(ctx, conf.MongoDBSettings{
		URI:        uri,
		Database:   "smart_farming",
		Collection: "users",
		Timeout:    10 * time.Second,
	})
	require.NoError(t, err)
	defer store.Close()

	cursor, err := store.collection.Indexes().List(ctx)
	require.NoError(t, err)
	var indexes []bson.M
	require.NoError(t, cursor.All(ctx, &indexes))

	var unique bool
	for _, idx := range indexes {
		if idx["name"] == "username_unique" {
			unique, _ = idx["unique"].(bool)
		}
	}
	assert.True(t, unique, "username index should be unique: %v", indexes)

	require.NoError(t, store.InsertUser(ctx, &User{Username: "admin", Password: "hash"}))
	err = store.InsertUser(ctx, &User{Username: "admin", Password: "other"})
	require.ErrorIs(t, err, ErrUserExists)

	user, err := store.FindUser(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "hash", user.Password)
	assert.False(t, user.CreatedAt.IsZero())

	_, err = store.FindUser(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	// Reopening must tolerate the index already existing.
	again, err := OpenMongo(ctx, conf.MongoDBSettings{URI: uri, Database: "smart_farming", Collection: "users"})
	require.NoError(t, err)
	require.NoError(t, again.Close())
}
