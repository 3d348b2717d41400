package statement

import (
	"github.com/smallbiznis/medledger/internal/statement/ledger"
	"github.com/smallbiznis/medledger/internal/statement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("statement.service",
	fx.Provide(ledger.NewReader),
	fx.Provide(service.New),
)
