package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/medledger/internal/clock"
	"github.com/smallbiznis/medledger/internal/config"
	"github.com/smallbiznis/medledger/internal/insurer"
	"github.com/smallbiznis/medledger/internal/invoice"
	"github.com/smallbiznis/medledger/internal/migration"
	"github.com/smallbiznis/medledger/internal/observability"
	"github.com/smallbiznis/medledger/internal/patient"
	"github.com/smallbiznis/medledger/internal/payment"
	"github.com/smallbiznis/medledger/internal/providers"
	"github.com/smallbiznis/medledger/internal/server"
	"github.com/smallbiznis/medledger/internal/statement"
	"github.com/smallbiznis/medledger/pkg/db"
	"github.com/smallbiznis/medledger/pkg/telemetry"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		telemetry.Module,
		migration.Module,

		patient.Module,
		insurer.Module,
		invoice.Module,
		payment.Module,
		statement.Module,
		providers.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
