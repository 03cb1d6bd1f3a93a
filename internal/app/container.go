package app

import (
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/masteryctx/internal/infrastructure/config"
	"github.com/eslsoft/masteryctx/internal/infrastructure/server"
	"github.com/eslsoft/masteryctx/internal/usecase"
)

// Container aggregates the application dependencies produced by Wire.
type Container struct {
	Config   *config.Config
	Logger   *logrus.Logger
	Learning usecase.LearningContextUsecase
	Server   *server.Server
}
