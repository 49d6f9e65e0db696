// Package ingest converts external exports into raw events at the boundary
// of the system. Importers validate and shape incoming records; they never
// decide what is or is not a subscription.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
	"github.com/subhound/subhound/internal/model"
	"github.com/subhound/subhound/internal/service"
)

// Ensure importers implement the service contract.
var (
	_ service.EventImporter = (*OFXImporter)(nil)
	_ service.EventImporter = (*EmailImporter)(nil)
)

// OFXImporter parses OFX/QFX files exported from a bank into raw events.
type OFXImporter struct {
	defaultCurrency string
}

// NewOFXImporter creates an OFX importer. Amounts are tagged with the given
// currency; OFX files in the wild frequently omit a usable CURDEF.
func NewOFXImporter(defaultCurrency string) *OFXImporter {
	return &OFXImporter{defaultCurrency: defaultCurrency}
}

// SourceType identifies events from this importer as bank-sourced.
func (p *OFXImporter) SourceType() model.SourceType {
	return model.SourceBank
}

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocessOFX fixes common formatting issues in OFX files.
func preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// Fix mixed-case SEVERITY values (should be INFO, WARN, or ERROR)
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// Fix missing closing angle brackets in SGML-style OFX files
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// Import parses an OFX/QFX file and returns the contained transactions as
// raw events for the given user.
func (p *OFXImporter) Import(ctx context.Context, r io.Reader, userID string) ([]model.RawEvent, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var events []model.RawEvent
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			if stmt.BankTranList == nil {
				continue
			}
			for _, ofxTx := range stmt.BankTranList.Transactions {
				events = append(events, p.convertTransaction(ofxTx, userID))
			}
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			if stmt.BankTranList == nil {
				continue
			}
			for _, ofxTx := range stmt.BankTranList.Transactions {
				events = append(events, p.convertTransaction(ofxTx, userID))
			}
		}
	}

	slog.Info("Parsed OFX file",
		"events", len(events),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return events, nil
}

// convertTransaction shapes one OFX transaction into a raw event.
func (p *OFXImporter) convertTransaction(ofxTx ofxgo.Transaction, userID string) model.RawEvent {
	// OFX uses negative amounts for debits; the detector cares about the
	// charge magnitude.
	amountFloat, _ := ofxTx.TrnAmt.Float64()
	if amountFloat < 0 {
		amountFloat = -amountFloat
	}
	amount := decimal.NewFromFloat(amountFloat)

	return model.RawEvent{
		UserID:          userID,
		SourceType:      model.SourceBank,
		SourceRecordID:  string(ofxTx.FiTID),
		RawMerchantText: extractMerchantText(ofxTx),
		Amount:          &amount,
		Currency:        p.defaultCurrency,
		OccurredAt:      ofxTx.DtPosted.Time,
		Extra: map[string]string{
			"transaction_type": fmt.Sprintf("%v", ofxTx.TrnType),
		},
	}
}

// extractMerchantText tries to get a clean merchant string from OFX data.
func extractMerchantText(tx ofxgo.Transaction) string {
	// Prefer PAYEE if available (cleaner merchant name)
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)

	// Sometimes MEMO has better merchant info than a generic NAME
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}

	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Clean up date patterns like "MM/DD" at the beginning
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// isGenericDescription checks if a transaction name is too generic.
func isGenericDescription(name string) bool {
	generic := []string{
		"DEBIT",
		"CREDIT",
		"PURCHASE",
		"PAYMENT",
		"POS TRANSACTION",
		"CARD PURCHASE",
	}

	upperName := strings.ToUpper(name)
	for _, g := range generic {
		if upperName == g {
			return true
		}
	}
	return false
}
