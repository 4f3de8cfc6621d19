package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	failuresSheet = "Failures"
	recordsSheet  = "Records"
)

// WriteReport renders failed batches as an xlsx workbook: one row per batch
// and one row per offer that was in a failed batch.
func WriteReport(w io.Writer, failures []Failure) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", failuresSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(recordsSheet); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	if err := setRow(f, failuresSheet, 1, []interface{}{"Batch", "Size", "Messages", "Errors", "Transport error", "Page"}); err != nil {
		return err
	}
	if err := setRow(f, recordsSheet, 1, []interface{}{"Batch", "ID", "EAN", "Part number", "Name", "Sale price", "Page"}); err != nil {
		return err
	}

	recordRow := 2
	for i, failure := range failures {
		row := []interface{}{
			failure.Batch,
			failure.Size,
			strings.Join(failure.Messages, "\n"),
			strings.Join(failure.Errors, "\n"),
			failure.TransportError,
			pageCell(failure.Page),
		}
		if err := setRow(f, failuresSheet, i+2, row); err != nil {
			return err
		}

		var records []map[string]interface{}
		if err := json.Unmarshal(failure.Payload, &records); err != nil {
			continue
		}
		for _, rec := range records {
			row := []interface{}{
				failure.Batch,
				rec["id"],
				firstString(rec["ean"]),
				rec["part_number"],
				rec["name"],
				rec["sale_price"],
				pageCell(failure.Page),
			}
			if err := setRow(f, recordsSheet, recordRow, row); err != nil {
				return err
			}
			recordRow++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// pageCell leaves the page blank for submissions that were not paged.
func pageCell(page int) interface{} {
	if page == 0 {
		return ""
	}
	return page
}

func firstString(v interface{}) interface{} {
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return ""
		}
		return list[0]
	}
	return v
}
