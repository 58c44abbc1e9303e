package tabular

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"capital-flow-lab/internal/domain"
)

const featureSheet = "flows"

// WriteFeaturesXLSX writes the feature table to a single-sheet workbook.
// Undefined values are left as blank cells.
func WriteFeaturesXLSX(path string, records []*domain.FlowFeatureRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", featureSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]interface{}, len(FeatureColumns))
	for i, c := range FeatureColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(featureSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range records {
		row := []interface{}{
			domain.DateKey(r.Date), r.Ticker,
			r.Open, r.High, r.Low, r.Close, r.AdjClose, r.Volume,
			r.NotionalTraded,
			cellValue(r.NotionalLag.Ptr()),
			cellValue(r.DNotional.Ptr()),
			cellValue(r.DNotionalUniverse.Ptr()),
			cellValue(r.FlowShare.Ptr()),
			cellValue(r.FlowZ.Ptr()),
			cellValue(r.VIX.Ptr()),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(featureSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	if err := f.SetPanes(featureSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := ensureDir(path); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// ReadFeatureSheet returns the raw cell text of the feature sheet, header first.
func ReadFeatureSheet(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(featureSheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", featureSheet, err)
	}
	return rows, nil
}

// cellValue maps an undefined value to a blank cell.
func cellValue(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
