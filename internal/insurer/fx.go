package insurer

import (
	"github.com/smallbiznis/medledger/internal/insurer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("insurer.service",
	fx.Provide(service.New),
)
