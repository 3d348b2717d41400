package pdf

import (
	"context"
	"io"

	"github.com/smallbiznis/medledger/internal/statement/domain"
)

// Provider renders computed reports as PDF documents.
type Provider interface {
	GenerateStatement(ctx context.Context, statement domain.Statement) (io.Reader, error)
}
