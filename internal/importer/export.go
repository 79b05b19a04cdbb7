package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JonMunkholm/assetinventory/internal/inventory"
)

// FailedRowsHeader is the header of WriteFailedRows output: the line number,
// the reason, then the recognized columns.
var FailedRowsHeader = append([]string{"_line", "_error"}, Columns...)

// WriteFailedRows writes every row of res that was not committed as CSV:
// rejected rows with their original values, then the records of failed
// batches. The output can be fixed and imported again.
func WriteFailedRows(w io.Writer, res *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(FailedRowsHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if res.Outcome != nil {
		for _, r := range res.Outcome.Rejected {
			msgs := make([]string, len(r.Errors))
			for i, e := range r.Errors {
				msgs[i] = e.Message
			}
			row := []string{strconv.Itoa(r.Line), strings.Join(msgs, "; ")}
			for _, col := range Columns {
				row = append(row, r.Fields[col])
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
	}

	if res.Commit != nil {
		next := 0
		for _, b := range res.Commit.Batches {
			for i := 0; i < b.Failed && next < len(res.Commit.FailedRecords); i++ {
				row := append([]string{"", fmt.Sprintf("batch %d: %s", b.Batch, b.Error)},
					assetFields(res.Commit.FailedRecords[next])...)
				next++
				if err := cw.Write(row); err != nil {
					return fmt.Errorf("write row: %w", err)
				}
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// assetFields returns a's values in Columns order.
func assetFields(a inventory.Asset) []string {
	price := ""
	if a.PurchasePrice != nil {
		price = strconv.FormatFloat(*a.PurchasePrice, 'f', 2, 64)
	}
	return []string{
		a.Name,
		a.AssetID,
		deref(a.Make),
		deref(a.Model),
		deref(a.SerialNumber),
		string(a.Status),
		deref(a.PurchaseDate),
		price,
		deref(a.Supplier),
		deref(a.Description),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
