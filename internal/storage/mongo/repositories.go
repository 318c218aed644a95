package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lugondev/swapforge/internal/storage"
)

func insertErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrDuplicateKey
	}
	return err
}

func findOne[T any](ctx context.Context, collection *mongo.Collection, filter bson.M) (*T, error) {
	var out T
	err := collection.FindOne(ctx, filter).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func findMany[T any](ctx context.Context, collection *mongo.Collection, filter bson.M, opts *options.FindOptions) ([]*T, error) {
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func pageOptions(limit, offset int) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return opts
}

type mongoWalletRepository struct {
	collection *mongo.Collection
}

func (r *mongoWalletRepository) FindByAddress(ctx context.Context, address string) (*storage.WalletModel, error) {
	return findOne[storage.WalletModel](ctx, r.collection, bson.M{"wallet_address": address})
}

func (r *mongoWalletRepository) FindByReferralCode(ctx context.Context, code string) (*storage.WalletModel, error) {
	return findOne[storage.WalletModel](ctx, r.collection, bson.M{"referral_code": code})
}

func (r *mongoWalletRepository) Insert(ctx context.Context, wallet *storage.WalletModel) error {
	_, err := r.collection.InsertOne(ctx, wallet)
	return insertErr(err)
}

func (r *mongoWalletRepository) IncrementTokensCreated(ctx context.Context, address string, at time.Time) (*storage.WalletModel, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{
		"$inc": bson.M{"tokens_created": 1},
		"$set": bson.M{"updated_at": at.UTC()},
	}

	var wallet storage.WalletModel
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"wallet_address": address}, update, opts).Decode(&wallet)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

type mongoTokenRepository struct {
	collection *mongo.Collection
}

func (r *mongoTokenRepository) Insert(ctx context.Context, token *storage.TokenModel) error {
	_, err := r.collection.InsertOne(ctx, token)
	return insertErr(err)
}

func (r *mongoTokenRepository) FindByMint(ctx context.Context, mint string) (*storage.TokenModel, error) {
	return findOne[storage.TokenModel](ctx, r.collection, bson.M{"mint_address": mint})
}

func (r *mongoTokenRepository) FindByWallet(ctx context.Context, address string, limit int, offset int) ([]*storage.TokenModel, error) {
	return findMany[storage.TokenModel](ctx, r.collection, bson.M{"wallet_address": address}, pageOptions(limit, offset))
}

type mongoActivityRepository struct {
	collection *mongo.Collection
}

func (r *mongoActivityRepository) Insert(ctx context.Context, activity *storage.ActivityModel) error {
	_, err := r.collection.InsertOne(ctx, activity)
	return insertErr(err)
}

func (r *mongoActivityRepository) FindByWallet(ctx context.Context, address string, kind string, limit int, offset int) ([]*storage.ActivityModel, error) {
	filter := bson.M{"wallet_address": address}
	if kind != "" {
		filter["kind"] = kind
	}
	return findMany[storage.ActivityModel](ctx, r.collection, filter, pageOptions(limit, offset))
}

type mongoTokenStateRepository struct {
	collection *mongo.Collection
}

func (r *mongoTokenStateRepository) Create(ctx context.Context, state *storage.TokenStateModel) error {
	_, err := r.collection.InsertOne(ctx, state)
	return insertErr(err)
}

func (r *mongoTokenStateRepository) Update(ctx context.Context, state *storage.TokenStateModel, expected string) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": state.Mint, "state": expected}, state)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return storage.ErrStaleState
	}
	return nil
}

func (r *mongoTokenStateRepository) FindByMint(ctx context.Context, mint string) (*storage.TokenStateModel, error) {
	return findOne[storage.TokenStateModel](ctx, r.collection, bson.M{"_id": mint})
}

func (r *mongoTokenStateRepository) FindStale(ctx context.Context, state string, cutoff time.Time, limit int) ([]*storage.TokenStateModel, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	filter := bson.M{"state": state, "updated_at": bson.M{"$lt": cutoff.UTC()}}
	return findMany[storage.TokenStateModel](ctx, r.collection, filter, opts)
}
