package sheets

import (
	"context"

	"billremind/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerWriter appends sent reminders to the external ledger.
	LedgerWriter interface {
		AppendEntry(ctx context.Context, e core.LedgerEntry) (rowRef string, err error)
	}

	// LedgerReader lists ledger rows for one year, newest last.
	LedgerReader interface {
		ListEntries(ctx context.Context, year int) ([]core.LedgerEntry, error)
	}
)

// Header is the first row of every ledger sheet.
var Header = []string{"Enviado em", "Vencimento", "Cliente", "Descrição", "Valor", "Próxima cobrança", "Canal", "Conta"}
