package mongodb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

var (
	clientInstance *mongo.Client
	dbInstance     *mongo.Database
	initOnce       sync.Once
	initErr        error
)

// ErrNotInitialized is returned when the client is used before InitMongoDB.
var ErrNotInitialized = errors.New("mongodb client is not initialized")

// InitMongoDB connects the shared client and selects dbName.
// It should be called once at application startup; later calls return the
// result of the first one.
func InitMongoDB(ctx context.Context, uri, dbName string) error {
	initOnce.Do(func() {
		log.Info().Str("database", dbName).Msg("Initializing MongoDB client")

		clientOptions := options.Client().
			ApplyURI(uri).
			SetConnectTimeout(10 * time.Second).
			SetMonitor(otelmongo.NewMonitor())

		client, err := mongo.Connect(ctx, clientOptions)
		if err != nil {
			initErr = err
			log.Error().Err(err).Msg("Failed to connect to MongoDB")
			return
		}

		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			initErr = err
			log.Error().Err(err).Msg("Failed to ping MongoDB primary")
			_ = client.Disconnect(context.Background())
			return
		}

		clientInstance = client
		dbInstance = client.Database(dbName)
		log.Info().Msg("MongoDB client initialized successfully.")
	})
	return initErr
}

// GetDB returns the database selected by InitMongoDB, or nil before it.
func GetDB() *mongo.Database {
	return dbInstance
}

// Ping checks the connection to the primary. Used by the /healthz readiness check.
func Ping(ctx context.Context) error {
	if clientInstance == nil {
		return ErrNotInitialized
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return clientInstance.Ping(pingCtx, readpref.Primary())
}

// CloseMongoDB disconnects the client on shutdown.
func CloseMongoDB(ctx context.Context) {
	if clientInstance == nil {
		return
	}
	log.Info().Msg("Closing MongoDB connection.")
	if err := clientInstance.Disconnect(ctx); err != nil {
		log.Error().Err(err).Msg("Error closing MongoDB connection")
	}
}
