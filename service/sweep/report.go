package sweep

import (
	"fmt"
	"io"
	"time"
)

// ReportHeader is printed before the per-token lines of the text report.
const ReportHeader = "[+] Possibly lost tokens:"

// WriteText writes the human-readable report: a header line followed by one
// line per contract in first-seen order.
func WriteText(w io.Writer, ledger *Ledger) error {
	if _, err := fmt.Fprintf(w, "\n%s\n", ReportHeader); err != nil {
		return err
	}
	for _, s := range ledger.Summaries() {
		if _, err := fmt.Fprintln(w, formatLine(s)); err != nil {
			return err
		}
	}
	return nil
}

func formatLine(s *TokenSummary) string {
	net := s.Net()
	if s.PossiblyLost() {
		return fmt.Sprintf("  - %s (%s): balance %s, possibly lost", s.Name, s.Symbol, net.String())
	}
	return fmt.Sprintf("  - %s (%s): current balance ~%s", s.Name, s.Symbol, net.String())
}

// Report is the machine-readable form of a sweep.
type Report struct {
	Address           string        `json:"address"`
	TransferCount     int           `json:"transfer_count"`
	PossiblyLostCount int           `json:"possibly_lost_count"`
	Tokens            []TokenReport `json:"tokens"`
	GeneratedAt       time.Time     `json:"generated_at"`
}

// TokenReport describes one token contract. Amounts are raw integers encoded
// as strings; NetScaled applies the token's decimals and is informational only.
type TokenReport struct {
	Contract     string `json:"contract"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	Decimals     *int32 `json:"decimals,omitempty"`
	Transfers    int    `json:"transfers"`
	Received     string `json:"received"`
	Sent         string `json:"sent"`
	Net          string `json:"net"`
	NetScaled    string `json:"net_scaled,omitempty"`
	PossiblyLost bool   `json:"possibly_lost"`
}

// BuildReport converts a ledger into a Report.
func BuildReport(ledger *Ledger, transferCount int, now time.Time) *Report {
	summaries := ledger.Summaries()
	report := &Report{
		Address:       ledger.Address(),
		TransferCount: transferCount,
		Tokens:        make([]TokenReport, 0, len(summaries)),
		GeneratedAt:   now.UTC(),
	}

	for _, s := range summaries {
		net := s.Net()
		tr := TokenReport{
			Contract:     s.Contract,
			Name:         s.Name,
			Symbol:       s.Symbol,
			Transfers:    s.Transfers,
			Received:     s.Received.String(),
			Sent:         s.Sent.String(),
			Net:          net.String(),
			PossiblyLost: s.PossiblyLost(),
		}
		if s.Decimals != UnknownDecimals {
			d := s.Decimals
			tr.Decimals = &d
			tr.NetScaled = net.Shift(-d).String()
		}
		if tr.PossiblyLost {
			report.PossiblyLostCount++
		}
		report.Tokens = append(report.Tokens, tr)
	}

	return report
}
