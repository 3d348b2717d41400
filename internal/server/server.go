package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/medledger/internal/config"
	insurerdomain "github.com/smallbiznis/medledger/internal/insurer/domain"
	invoicedomain "github.com/smallbiznis/medledger/internal/invoice/domain"
	"github.com/smallbiznis/medledger/internal/observability"
	obsmiddleware "github.com/smallbiznis/medledger/internal/observability/logger"
	obstracing "github.com/smallbiznis/medledger/internal/observability/tracing"
	patientdomain "github.com/smallbiznis/medledger/internal/patient/domain"
	paymentdomain "github.com/smallbiznis/medledger/internal/payment/domain"
	statementdomain "github.com/smallbiznis/medledger/internal/statement/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	genID  *snowflake.Node

	patientSvc   patientdomain.Service
	insurerSvc   insurerdomain.Service
	invoiceSvc   invoicedomain.Service
	paymentSvc   paymentdomain.Service
	statementSvc statementdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	GenID        *snowflake.Node
	PatientSvc   patientdomain.Service
	InsurerSvc   insurerdomain.Service
	InvoiceSvc   invoicedomain.Service
	PaymentSvc   paymentdomain.Service
	StatementSvc statementdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		genID:        p.GenID,
		patientSvc:   p.PatientSvc,
		insurerSvc:   p.InsurerSvc,
		invoiceSvc:   p.InvoiceSvc,
		paymentSvc:   p.PaymentSvc,
		statementSvc: p.StatementSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	reports := v1.Group("/reports")
	reports.GET("/statements", s.GetStatement)
	reports.GET("/statements/pdf", s.GetStatementPDF)
	reports.GET("/outstanding", s.ListOutstanding)

	patients := v1.Group("/patients")
	patients.POST("", s.CreatePatient)
	patients.GET("", s.ListPatients)
	patients.GET("/:id", s.GetPatientByID)
	patients.PATCH("/:id", s.UpdatePatient)
	patients.GET("/:id/financial-summary", s.GetPatientFinancialSummary)
	patients.GET("/:id/invoices", s.ListPatientInvoices)
	patients.GET("/:id/payments", s.ListPatientPayments)

	invoices := v1.Group("/invoices")
	invoices.POST("", s.CreateInvoice)
	invoices.GET("/:id", s.GetInvoiceByID)
	invoices.PUT("/:id/status", s.UpdateInvoiceStatus)
	invoices.POST("/:id/lines", s.AddInvoiceLine)
	invoices.DELETE("/:id/lines/:line_id", s.RemoveInvoiceLine)
	invoices.GET("/:id/payments", s.ListInvoicePayments)

	payments := v1.Group("/payments")
	payments.POST("", s.RecordPayment)
	payments.GET("/:id", s.GetPaymentByID)
	payments.DELETE("/:id", s.DeletePayment)

	insurers := v1.Group("/insurers")
	insurers.POST("", s.CreateInsurer)
	insurers.GET("", s.ListInsurers)
}
