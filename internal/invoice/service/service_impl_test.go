package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/medledger/internal/clock"
	"github.com/smallbiznis/medledger/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/medledger/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, dsn string) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&domain.Invoice{},
		&domain.InvoiceLine{},
		&paymentdomain.Payment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2025, 11, 15, 9, 0, 0, 0, time.UTC)),
	})

	return svc, db, node
}

func TestCreateAndGetInvoice(t *testing.T) {
	svc, _, node := newTestService(t, "file:invtest_create?mode=memory&cache=shared")
	ctx := context.Background()

	patientID := node.Generate()
	created, err := svc.Create(ctx, domain.CreateInvoiceRequest{
		PatientID:        patientID.String(),
		InvoiceDate:      time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC),
		InsurancePortion: 3000,
		PatientPortion:   7000,
		Lines: []domain.CreateLineRequest{
			{Description: "Consultation", Qty: 1, UnitPrice: 7000},
			{Description: "Lab panel", Qty: 1, UnitPrice: 3000},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, created.Status)
	require.Len(t, created.Lines, 2)
	assert.Equal(t, 1, created.Lines[0].LineNo)
	assert.Equal(t, 2, created.Lines[1].LineNo)
	assert.Equal(t, int64(10000), created.GrossTotal())

	fetched, err := svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
	require.Len(t, fetched.Lines, 2)
	assert.Equal(t, "Consultation", fetched.Lines[0].Description)
}

func TestCreateInvoice_Validation(t *testing.T) {
	svc, _, node := newTestService(t, "file:invtest_valid?mode=memory&cache=shared")
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateInvoiceRequest{PatientID: "not-a-number"})
	assert.ErrorIs(t, err, domain.ErrInvalidPatient)

	_, err = svc.Create(ctx, domain.CreateInvoiceRequest{
		PatientID:      node.Generate().String(),
		PatientPortion: -1,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Create(ctx, domain.CreateInvoiceRequest{
		PatientID: node.Generate().String(),
		Lines:     []domain.CreateLineRequest{{Qty: -1, UnitPrice: 100}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidLine)
}

func TestRefreshStatus(t *testing.T) {
	svc, db, node := newTestService(t, "file:invtest_refresh?mode=memory&cache=shared")
	ctx := context.Background()

	patientID := node.Generate()
	created, err := svc.Create(ctx, domain.CreateInvoiceRequest{
		PatientID:      patientID.String(),
		PatientPortion: 10000,
	})
	require.NoError(t, err)

	status, err := svc.RefreshStatus(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, status)

	now := time.Now().UTC()
	require.NoError(t, db.Create(&paymentdomain.Payment{
		ID: node.Generate(), PatientID: patientID, InvoiceID: &created.ID,
		PaymentDate: now, Method: paymentdomain.MethodCash, Amount: 4000,
		CreatedAt: now, UpdatedAt: now,
	}).Error)

	status, err = svc.RefreshStatus(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartial, status)

	require.NoError(t, db.Create(&paymentdomain.Payment{
		ID: node.Generate(), PatientID: patientID, InvoiceID: &created.ID,
		PaymentDate: now, Method: paymentdomain.MethodCard, Amount: 6000,
		CreatedAt: now, UpdatedAt: now,
	}).Error)

	status, err = svc.RefreshStatus(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, status)

	fetched, err := svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, fetched.Status)
}

func TestAddAndRemoveLine(t *testing.T) {
	svc, _, node := newTestService(t, "file:invtest_lines?mode=memory&cache=shared")
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateInvoiceRequest{
		PatientID: node.Generate().String(),
		Lines:     []domain.CreateLineRequest{{Description: "Consultation", Qty: 1, UnitPrice: 5000}},
	})
	require.NoError(t, err)

	line, err := svc.AddLine(ctx, created.ID.String(), domain.CreateLineRequest{
		Description: "Dressing", Qty: 2, UnitPrice: 1500,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, line.LineNo)

	require.NoError(t, svc.RemoveLine(ctx, created.ID.String(), line.ID.String()))
	err = svc.RemoveLine(ctx, created.ID.String(), line.ID.String())
	assert.ErrorIs(t, err, domain.ErrLineNotFound)

	fetched, err := svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Len(t, fetched.Lines, 1)
}
