//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/masteryctx/internal/adapter/connectrpc"
	"github.com/eslsoft/masteryctx/internal/adapter/gateway"
	adaptergrpc "github.com/eslsoft/masteryctx/internal/adapter/grpc"
	"github.com/eslsoft/masteryctx/internal/infrastructure/config"
	"github.com/eslsoft/masteryctx/internal/infrastructure/server"
)

var configSet = wire.NewSet(
	config.Load,
)

var loggerSet = wire.NewSet(
	server.NewLogger,
	wire.Bind(new(logrus.FieldLogger), new(*logrus.Logger)),
)

var repositorySet = wire.NewSet(
	ProvideStores,
	ProvideRecordRepository,
	ProvideSnapshotRepository,
)

var usecaseSet = wire.NewSet(
	ProvideLearningContextUsecase,
)

var serviceSet = wire.NewSet(
	connectrpc.NewLearningContextServer,
	wire.Bind(new(connectrpc.LearningContextServiceHandler), new(*connectrpc.LearningContextServer)),
	gateway.NewRoutes,
	adaptergrpc.NewHealthChecker,
)

var serverSet = wire.NewSet(
	server.NewServer,
)

// Initialize builds the application container using Wire.
func Initialize() (*Container, func(), error) {
	wire.Build(
		configSet,
		loggerSet,
		repositorySet,
		usecaseSet,
		serviceSet,
		serverSet,
		wire.Struct(new(Container), "Config", "Logger", "Learning", "Server"),
	)
	return nil, nil, nil
}
