// ABOUTME: Debt summary rendering for the consultation flow
// ABOUTME: One block per contract, headed by a canonicalized provider name

package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/solvencia/chatdesk/internal/store"
)

// providerFragments is the ordered list of known provider name fragments.
// Matching is case-insensitive substring, first match wins.
var providerFragments = []struct {
	fragment string
	display  string
}{
	{"claro", "Claro"},
	{"movistar", "Movistar"},
	{"tigo", "Tigo"},
	{"wom", "WOM"},
	{"directv", "DirecTV"},
	{"bancolombia", "Bancolombia"},
	{"davivienda", "Davivienda"},
	{"propia", "Cartera Propia"},
}

const fallbackProvider = "Entidad financiera"

// canonicalProvider maps a raw portfolio descriptor to a display name
func canonicalProvider(raw string) string {
	lowered := strings.ToLower(raw)
	for _, p := range providerFragments {
		if strings.Contains(lowered, p.fragment) {
			return p.display
		}
	}
	if strings.TrimSpace(raw) == "" {
		return fallbackProvider
	}
	return raw
}

// debtSummary renders one block per contract the client holds. Contracts in
// a self-owned portfolio expose total and settlement amounts; third-party
// contracts expose a single balance as of a cutoff date. A client with no
// contracts gets the NoPendingDebtText sentinel instead of an empty list.
func (e *Engine) debtSummary(ctx context.Context, client *store.Client) (string, error) {
	contracts, err := e.clients.FindDebtContractsForClient(ctx, client.ID)
	if err != nil {
		return "", fmt.Errorf("listing contracts: %w", err)
	}

	if len(contracts) == 0 {
		return NoPendingDebtText, nil
	}

	var blocks []string
	for _, contract := range contracts {
		detail, err := e.clients.FindDebtDetail(ctx, contract.ID, contract.SelfOwned)
		if err != nil {
			return "", fmt.Errorf("fetching detail for contract %s: %w", contract.ID, err)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "*%s*\n", canonicalProvider(contract.Portfolio))
		if contract.SelfOwned {
			fmt.Fprintf(&b, "Deuda total: %s\n", formatPesos(detail.Total))
			fmt.Fprintf(&b, "Pago de contado: %s", formatPesos(detail.Settlement))
		} else {
			fmt.Fprintf(&b, "Saldo al corte %s: %s", detail.CutoffDate, formatPesos(detail.Balance))
		}
		blocks = append(blocks, b.String())
	}

	return strings.Join(blocks, "\n\n"), nil
}

// formatPesos renders an amount as Colombian pesos with dot separators
func formatPesos(amount float64) string {
	digits := fmt.Sprintf("%.0f", amount)

	negative := strings.HasPrefix(digits, "-")
	if negative {
		digits = digits[1:]
	}

	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}

	out := "$" + b.String()
	if negative {
		out = "-" + out
	}
	return out
}
