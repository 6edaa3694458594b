package reports

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"fundrise/invest-portal/invest-portal-backend/internal/ledger"
)

const investmentSheet = "Investments"

// InvestmentWorkbook builds a spreadsheet of the given investments, one row
// per record, with a styled header and an autofilter over the data range.
func InvestmentWorkbook(investments []ledger.Investment) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", investmentSheet)

	headers := []string{"Investment ID", "Company ID", "Investor ID", "Amount", "Ownership %", "Type", "Tx Hash", "Chain Verified", "Created"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(investmentSheet, cell, h); err != nil {
			return nil, err
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(investmentSheet, "A1", "I1", headerStyle); err != nil {
		return nil, err
	}

	for i, inv := range investments {
		row := i + 2
		txHash := ""
		if inv.BlockchainTxHash != nil {
			txHash = *inv.BlockchainTxHash
		}
		values := []interface{}{
			inv.ID.String(),
			inv.CompanyID.String(),
			inv.InvestorID.String(),
			inv.Amount,
			inv.OwnershipPercentage,
			string(inv.InvestmentType),
			txHash,
			inv.IsBlockchainVerified,
			inv.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(investmentSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	if len(investments) > 0 {
		lastRow := fmt.Sprintf("I%d", len(investments)+1)
		if err := f.AutoFilter(investmentSheet, "A1:"+lastRow, nil); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(investmentSheet, "A", "C", 38)
	_ = f.SetColWidth(investmentSheet, "G", "G", 68)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}
