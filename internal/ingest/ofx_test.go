package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subhound/subhound/internal/model"
)

// Sample OFX data for testing.
const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20250315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20250101120000[0:GMT]
<DTEND>20250131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250115120000[0:GMT]
<TRNAMT>-15.49
<FITID>2025011501
<NAME>NETFLIX.COM
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250120120000[0:GMT]
<TRNAMT>-125.00
<FITID>2025012001
<NAME>Whole Foods Market
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20250131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const sampleCreditCardOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20250315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>USD
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20250101120000[0:GMT]
<DTEND>20250131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250110120000[0:GMT]
<TRNAMT>-9.99
<FITID>CC2025011001
<NAME>SPOTIFY
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-500.00
<DTASOF>20250131120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestOFXImporter_Import(t *testing.T) {
	tests := []struct {
		name      string
		ofxData   string
		wantCount int
		wantErr   bool
	}{
		{
			name:      "bank statement",
			ofxData:   sampleBankOFX,
			wantCount: 2,
		},
		{
			name:      "credit card statement",
			ofxData:   sampleCreditCardOFX,
			wantCount: 1,
		},
		{
			name:    "invalid data",
			ofxData: "not an ofx file",
			wantErr: true,
		},
		{
			name:    "empty file",
			ofxData: "",
			wantErr: true,
		},
	}

	importer := NewOFXImporter("USD")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := importer.Import(context.Background(), strings.NewReader(tt.ofxData), "alice")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, events, tt.wantCount)
		})
	}
}

func TestOFXImporter_Import_EventShape(t *testing.T) {
	importer := NewOFXImporter("USD")

	events, err := importer.Import(context.Background(), strings.NewReader(sampleBankOFX), "alice")
	require.NoError(t, err)
	require.Len(t, events, 2)

	e := events[0]
	assert.Equal(t, "alice", e.UserID)
	assert.Equal(t, model.SourceBank, e.SourceType)
	assert.Equal(t, "2025011501", e.SourceRecordID)
	assert.Equal(t, "NETFLIX.COM", e.RawMerchantText)
	assert.Equal(t, "USD", e.Currency)
	require.NotNil(t, e.Amount)
	// Debits come in negative; the stored amount is the charge magnitude.
	assert.True(t, e.Amount.Equal(decimal.NewFromFloat(15.49)),
		"got %s", e.Amount)
	assert.Equal(t, 2025, e.OccurredAt.Year())
	assert.Equal(t, "DEBIT", e.Extra["transaction_type"])
}

func TestPreprocessOFX(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "mixed case severity",
			input: "<SEVERITY>Info</SEVERITY>",
			want:  "<SEVERITY>INFO</SEVERITY>",
		},
		{
			name:  "missing closing bracket",
			input: "<BANKTRANLIST",
			want:  "<BANKTRANLIST>",
		},
		{
			name:  "leading whitespace stripped",
			input: "\n\t OFXHEADER:100",
			want:  "OFXHEADER:100",
		},
		{
			name:  "well formed content untouched",
			input: "<TRNAMT>-15.49",
			want:  "<TRNAMT>-15.49",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, preprocessOFX(tt.input))
		})
	}
}

func TestExtractMerchantText(t *testing.T) {
	tests := []struct {
		name string
		tx   ofxgo.Transaction
		want string
	}{
		{
			name: "payee preferred over name",
			tx: ofxgo.Transaction{
				Name:  "POS TRANSACTION",
				Payee: &ofxgo.Payee{Name: "Netflix"},
			},
			want: "Netflix",
		},
		{
			name: "memo replaces generic name",
			tx: ofxgo.Transaction{
				Name: "DEBIT",
				Memo: "SPOTIFY STOCKHOLM",
			},
			want: "SPOTIFY STOCKHOLM",
		},
		{
			name: "memo ignored for specific name",
			tx: ofxgo.Transaction{
				Name: "NETFLIX.COM",
				Memo: "card ending 1234",
			},
			want: "NETFLIX.COM",
		},
		{
			name: "processor prefix stripped",
			tx: ofxgo.Transaction{
				Name: "POS PURCHASE NETFLIX.COM",
			},
			want: "NETFLIX.COM",
		},
		{
			name: "leading date stripped",
			tx: ofxgo.Transaction{
				Name: "01/15 NETFLIX.COM",
			},
			want: "NETFLIX.COM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractMerchantText(tt.tx))
		})
	}
}

func TestIsGenericDescription(t *testing.T) {
	assert.True(t, isGenericDescription("DEBIT"))
	assert.True(t, isGenericDescription("pos transaction"))
	assert.False(t, isGenericDescription("NETFLIX.COM"))
	assert.False(t, isGenericDescription("DEBIT NETFLIX"))
}
