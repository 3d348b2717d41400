package patient

import (
	"github.com/smallbiznis/medledger/internal/patient/service"
	"go.uber.org/fx"
)

var Module = fx.Module("patient.service",
	fx.Provide(service.New),
)
