package sweep

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/brojonat/chainsweep/client"
	"github.com/shopspring/decimal"
)

// UnknownDecimals marks a token whose decimals were never reported.
const UnknownDecimals int32 = -1

// TokenSummary accumulates the raw transfer amounts seen for one token contract.
// Received and Sent only ever grow; amounts are unscaled token units.
type TokenSummary struct {
	Contract  string
	Name      string
	Symbol    string
	Decimals  int32
	Received  decimal.Decimal
	Sent      decimal.Decimal
	Transfers int
}

// Net returns received minus sent.
func (s *TokenSummary) Net() decimal.Decimal {
	return s.Received.Sub(s.Sent)
}

// PossiblyLost reports whether the net balance is zero or negative.
// The heuristic ignores decimals, burns and swaps.
func (s *TokenSummary) PossiblyLost() bool {
	return !s.Net().IsPositive()
}

// Ledger maps token contract addresses to their summaries for one target
// address, remembering the order in which contracts were first seen.
type Ledger struct {
	address string
	tokens  map[string]*TokenSummary
	order   []string
}

// NewLedger creates an empty ledger for the given target address.
func NewLedger(address string) *Ledger {
	return &Ledger{
		address: address,
		tokens:  make(map[string]*TokenSummary),
	}
}

// Address returns the target address the ledger classifies transfers against.
func (l *Ledger) Address() string {
	return l.address
}

// Add folds one transfer event into the ledger. A transfer whose recipient
// equals the target address (case-insensitively) counts as received; every
// other transfer counts as sent. Name, symbol and decimals are overwritten by
// each event. The ledger is left untouched if the value cannot be parsed.
func (l *Ledger) Add(ev client.TransferEvent) error {
	amount, err := parseAmount(ev.Value)
	if err != nil {
		return fmt.Errorf("contract %s: %w", ev.ContractAddress, err)
	}

	summary, ok := l.tokens[ev.ContractAddress]
	if !ok {
		summary = &TokenSummary{
			Contract: ev.ContractAddress,
			Decimals: UnknownDecimals,
			Received: decimal.Zero,
			Sent:     decimal.Zero,
		}
		l.tokens[ev.ContractAddress] = summary
		l.order = append(l.order, ev.ContractAddress)
	}

	summary.Name = ev.TokenName
	summary.Symbol = ev.TokenSymbol
	// ERC-20 decimals is a uint8; anything else is treated as unreported.
	if d, err := strconv.ParseUint(ev.TokenDecimal, 10, 8); err == nil {
		summary.Decimals = int32(d)
	}
	summary.Transfers++

	if strings.EqualFold(ev.To, l.address) {
		summary.Received = summary.Received.Add(amount)
	} else {
		summary.Sent = summary.Sent.Add(amount)
	}

	return nil
}

// Get returns the summary for a contract address.
func (l *Ledger) Get(contract string) (*TokenSummary, bool) {
	s, ok := l.tokens[contract]
	return s, ok
}

// Len returns the number of distinct contracts in the ledger.
func (l *Ledger) Len() int {
	return len(l.order)
}

// Summaries returns all summaries in first-seen order.
func (l *Ledger) Summaries() []*TokenSummary {
	out := make([]*TokenSummary, 0, len(l.order))
	for _, contract := range l.order {
		out = append(out, l.tokens[contract])
	}
	return out
}

// PossiblyLostCount returns how many contracts have a non-positive net balance.
func (l *Ledger) PossiblyLostCount() int {
	n := 0
	for _, s := range l.tokens {
		if s.PossiblyLost() {
			n++
		}
	}
	return n
}

// Aggregate folds events, in order, into a new ledger for address.
// Any malformed value fails the whole aggregation.
func Aggregate(address string, events []client.TransferEvent) (*Ledger, error) {
	ledger := NewLedger(address)
	for i, ev := range events {
		if err := ledger.Add(ev); err != nil {
			return nil, fmt.Errorf("transfer %d: %w", i, err)
		}
	}
	return ledger, nil
}

// parseAmount parses a raw, unsigned, base-10 token amount of any size.
func parseAmount(value string) (decimal.Decimal, error) {
	if value == "" || strings.IndexFunc(value, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return decimal.Decimal{}, fmt.Errorf("invalid transfer value %q: not an unsigned integer", value)
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid transfer value %q: %w", value, err)
	}
	return amount, nil
}
