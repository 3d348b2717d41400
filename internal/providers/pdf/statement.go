package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/medledger/internal/statement/domain"
)

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateStatement(ctx context.Context, statement domain.Statement) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(10,
		text.NewCol(12, "Patient statement", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(12,
		col.New(12).Add(
			text.New("Scope: "+statement.GeneratedScope, props.Text{Top: 0}),
			text.New("As of: "+statement.AsOf.Format("2006-01-02"), props.Text{Top: 4}),
		),
	)

	addSection(m, "Unpaid accounts", statement.Unpaid)
	addSection(m, "Paid accounts", statement.Paid)

	if len(statement.Warnings) > 0 {
		m.AddRow(10,
			text.NewCol(12, fmt.Sprintf("%d data-quality warnings attached; review before mailing.", len(statement.Warnings)), props.Text{
				Size: 8,
				Top:  4,
			}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func addSection(m core.Maroto, title string, section domain.Section) {
	m.AddRow(12,
		text.NewCol(12, title, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   4,
		}),
	)

	m.AddRow(8,
		text.NewCol(4, "Patient", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Invoiced", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Paid", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Balance", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Aging", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, patient := range section.Patients {
		m.AddRow(8,
			text.NewCol(4, patient.DisplayName, props.Text{Size: 9}),
			text.NewCol(2, formatAmount(patient.TotalInvoiced), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, formatAmount(patient.PaymentsReceived), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, formatAmount(patient.Balance), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, fmt.Sprintf("%d days", patient.MaxAgingDays), props.Text{Size: 9, Align: align.Right}),
		)
		for _, inv := range patient.Invoices {
			m.AddRow(6,
				text.NewCol(4, "  "+inv.InvoiceDate.Format("2006-01-02")+"  #"+inv.InvoiceID.String(), props.Text{Size: 8}),
				text.NewCol(2, formatAmount(inv.PatientPortion), props.Text{Size: 8, Align: align.Right}),
				text.NewCol(2, formatAmount(inv.TotalPaid), props.Text{Size: 8, Align: align.Right}),
				text.NewCol(2, formatAmount(inv.BalanceDue), props.Text{Size: 8, Align: align.Right}),
				text.NewCol(2, string(inv.AgingBucket), props.Text{Size: 8, Align: align.Right}),
			)
		}
	}

	m.AddRow(8,
		text.NewCol(4, "Section total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, formatAmount(section.Totals.TotalInvoiced), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, formatAmount(section.Totals.PaymentsReceived), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, formatAmount(section.Totals.Balance), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		col.New(2),
	)
}

func formatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
