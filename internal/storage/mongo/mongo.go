package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/lugondev/swapforge/internal/config"
	"github.com/lugondev/swapforge/internal/storage"
)

type MongoRepository struct {
	client       *mongo.Client
	database     *mongo.Database
	wallets      *mongo.Collection
	tokens       *mongo.Collection
	activities   *mongo.Collection
	tokenStates  *mongo.Collection
	walletRepo   storage.WalletRepository
	tokenRepo    storage.TokenRepository
	activityRepo storage.ActivityRepository
	stateRepo    storage.TokenStateRepository
}

func NewMongoRepository(ctx context.Context, cfg *config.MongoDBConfig) (*MongoRepository, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetConnectTimeout(time.Duration(cfg.ConnectTimeout) * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(cfg.Database)

	repo := &MongoRepository{
		client:      client,
		database:    database,
		wallets:     database.Collection("wallets"),
		tokens:      database.Collection("tokens"),
		activities:  database.Collection("activities"),
		tokenStates: database.Collection("token_states"),
	}

	repo.walletRepo = &mongoWalletRepository{collection: repo.wallets}
	repo.tokenRepo = &mongoTokenRepository{collection: repo.tokens}
	repo.activityRepo = &mongoActivityRepository{collection: repo.activities}
	repo.stateRepo = &mongoTokenStateRepository{collection: repo.tokenStates}

	if err := repo.createIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return repo, nil
}

func (r *MongoRepository) createIndexes(ctx context.Context) error {
	indexes := []struct {
		collection *mongo.Collection
		models     []mongo.IndexModel
	}{
		{
			collection: r.wallets,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "wallet_address", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "referral_code", Value: 1}}, Options: options.Index().SetUnique(true)},
			},
		},
		{
			collection: r.tokens,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "mint_address", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "wallet_address", Value: 1}, {Key: "created_at", Value: -1}}},
			},
		},
		{
			collection: r.activities,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "wallet_address", Value: 1}, {Key: "kind", Value: 1}, {Key: "created_at", Value: -1}}},
			},
		},
		{
			collection: r.tokenStates,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "state", Value: 1}, {Key: "updated_at", Value: 1}}},
				{Keys: bson.D{{Key: "creator_wallet", Value: 1}}},
			},
		},
	}

	for _, idx := range indexes {
		if _, err := idx.collection.Indexes().CreateMany(ctx, idx.models); err != nil {
			return err
		}
	}

	return nil
}

func (r *MongoRepository) Wallets() storage.WalletRepository {
	return r.walletRepo
}

func (r *MongoRepository) Tokens() storage.TokenRepository {
	return r.tokenRepo
}

func (r *MongoRepository) Activities() storage.ActivityRepository {
	return r.activityRepo
}

func (r *MongoRepository) TokenStates() storage.TokenStateRepository {
	return r.stateRepo
}

func (r *MongoRepository) Close() error {
	if r.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.client.Disconnect(ctx)
	}
	return nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}
