package packs

import (
	"encoding/csv"
	"io"
	"strconv"
)

// ExportHeader is the first row of every pack export.
var ExportHeader = []string{"Category", "Name", "Brand", "Quantity", "Weight", "Unit", "Price", "Worn", "Notes"}

// ExportCSV writes one row per pack item in display order.
func ExportCSV(w io.Writer, items []ItemDTO) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ExportHeader); err != nil {
		return err
	}
	for _, item := range items {
		if err := writer.Write(exportRow(item)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func exportRow(item ItemDTO) []string {
	category := ""
	if item.Category != nil {
		category = item.Category.Name
	}
	return []string{
		category,
		item.Name,
		deref(item.Brand),
		strconv.Itoa(item.PackItem.Quantity),
		item.Weight.StringFixed(2),
		item.WeightUnit,
		item.Price.StringFixed(2),
		strconv.FormatBool(item.PackItem.Worn),
		deref(item.PackItem.Notes),
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
