package storage

import (
	"context"
	"fmt"

	"github.com/lugondev/swapforge/internal/config"
)

var (
	memoryFactory   func(context.Context) (Repository, error)
	mongoFactory    func(context.Context, *config.MongoDBConfig) (Repository, error)
	postgresFactory func(context.Context, *config.PostgresConfig) (Repository, error)
	mysqlFactory    func(context.Context, *config.MySQLConfig) (Repository, error)
)

func RegisterMemoryFactory(factory func(context.Context) (Repository, error)) {
	memoryFactory = factory
}

func RegisterMongoFactory(factory func(context.Context, *config.MongoDBConfig) (Repository, error)) {
	mongoFactory = factory
}

func RegisterPostgresFactory(factory func(context.Context, *config.PostgresConfig) (Repository, error)) {
	postgresFactory = factory
}

func RegisterMySQLFactory(factory func(context.Context, *config.MySQLConfig) (Repository, error)) {
	mysqlFactory = factory
}

func notRegistered(name string) error {
	return fmt.Errorf("%s factory not registered - import _ \"github.com/lugondev/swapforge/internal/storage/%s\"", name, name)
}

func NewMemoryRepository(ctx context.Context) (Repository, error) {
	if memoryFactory == nil {
		return nil, notRegistered("memory")
	}
	return memoryFactory(ctx)
}

func NewMongoRepositoryFromConfig(ctx context.Context, cfg *config.MongoDBConfig) (Repository, error) {
	if mongoFactory == nil {
		return nil, notRegistered("mongo")
	}
	return mongoFactory(ctx, cfg)
}

func NewPostgresRepositoryFromConfig(ctx context.Context, cfg *config.PostgresConfig) (Repository, error) {
	if postgresFactory == nil {
		return nil, notRegistered("postgres")
	}
	return postgresFactory(ctx, cfg)
}

func NewMySQLRepositoryFromConfig(ctx context.Context, cfg *config.MySQLConfig) (Repository, error) {
	if mysqlFactory == nil {
		return nil, notRegistered("mysql")
	}
	return mysqlFactory(ctx, cfg)
}
