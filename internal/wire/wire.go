//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"

	"github.com/hireflow/interview-core/internal/app"
)

func InitializeApp() (*app.App, func(), error) {
	wire.Build(AppSet)
	return &app.App{}, nil, nil
}
