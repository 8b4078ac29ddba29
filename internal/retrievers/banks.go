package retrievers

// The Canadian Big 6. Fiscal year end is Oct 31, so Q1 = Nov-Jan.
var BankNames = map[string]string{
	"RY":  "Royal Bank of Canada",
	"TD":  "Toronto-Dominion Bank",
	"BMO": "Bank of Montreal",
	"BNS": "Bank of Nova Scotia (Scotiabank)",
	"CM":  "Canadian Imperial Bank of Commerce (CIBC)",
	"NA":  "National Bank of Canada",
}

var BankTickers = map[string]string{
	"RY":  "RY.TO",
	"TD":  "TD.TO",
	"BMO": "BMO.TO",
	"BNS": "BNS.TO",
	"CM":  "CM.TO",
	"NA":  "NA.TO",
}

// BankName returns the display name, falling back to the id for unknown
// banks so a bad row still renders.
func BankName(bankID string) string {
	if name, ok := BankNames[bankID]; ok {
		return name
	}
	return bankID
}
