package importer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/JonMunkholm/assetinventory/internal/inventory"
)

// Row classification outcomes.
const (
	ClassClean    = "clean"
	ClassWarned   = "warned"
	ClassRejected = "rejected"
)

// RejectedRow is a row excluded from commit, with its original values.
type RejectedRow struct {
	Line     int                    `json:"line"`
	Fields   map[string]string      `json:"fields"`
	Errors   []RowValidationError   `json:"errors"`
	Warnings []RowValidationWarning `json:"warnings,omitempty"`
}

// WarnedRow is a corrected row that will be committed.
type WarnedRow struct {
	Line     int                    `json:"line"`
	Record   inventory.Asset        `json:"record"`
	Warnings []RowValidationWarning `json:"warnings"`
}

// CleanRow is a row that passed every check untouched.
type CleanRow struct {
	Line   int             `json:"line"`
	Record inventory.Asset `json:"record"`
}

// Outcome is the result of validating a parsed file.
type Outcome struct {
	Considered int           `json:"considered"`
	Rejected   []RejectedRow `json:"rejected"`
	Warned     []WarnedRow   `json:"warned"`
	Clean      []CleanRow    `json:"clean"`
}

// ValidCount is the number of rows that will be committed.
func (o *Outcome) ValidCount() int {
	return len(o.Warned) + len(o.Clean)
}

// Valid returns the records of warned and clean rows in source order.
func (o *Outcome) Valid() []inventory.Asset {
	type lined struct {
		line int
		rec  inventory.Asset
	}
	all := make([]lined, 0, o.ValidCount())
	for _, w := range o.Warned {
		all = append(all, lined{w.Line, w.Record})
	}
	for _, c := range o.Clean {
		all = append(all, lined{c.Line, c.Record})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].line < all[j].line })

	out := make([]inventory.Asset, len(all))
	for i, l := range all {
		out[i] = l.rec
	}
	return out
}

// Validate checks every row and sorts it into exactly one of rejected,
// warned or clean. All checks run before classification; any error wins
// over warnings.
func Validate(rows []RawRow) *Outcome {
	out := &Outcome{
		Considered: len(rows),
		Rejected:   []RejectedRow{},
		Warned:     []WarnedRow{},
		Clean:      []CleanRow{},
	}

	for _, row := range rows {
		checked := ValidateRow(row)
		switch checked.Class() {
		case ClassRejected:
			out.Rejected = append(out.Rejected, RejectedRow{
				Line:     row.Line,
				Fields:   row.Fields,
				Errors:   checked.Errors,
				Warnings: checked.Warnings,
			})
		case ClassWarned:
			out.Warned = append(out.Warned, WarnedRow{
				Line:     row.Line,
				Record:   checked.Record,
				Warnings: checked.Warnings,
			})
		default:
			out.Clean = append(out.Clean, CleanRow{Line: row.Line, Record: checked.Record})
		}
	}
	return out
}

// ValidatedRow is a RawRow after checks and corrections.
type ValidatedRow struct {
	Line     int
	Fields   map[string]string // corrected values
	Record   inventory.Asset
	Errors   []RowValidationError
	Warnings []RowValidationWarning
}

// Class returns the classification of the row.
func (v ValidatedRow) Class() string {
	switch {
	case len(v.Errors) > 0:
		return ClassRejected
	case len(v.Warnings) > 0:
		return ClassWarned
	default:
		return ClassClean
	}
}

// ValidateRow applies the field rules to a single row. The input row is
// not modified.
func ValidateRow(row RawRow) ValidatedRow {
	v := ValidatedRow{Line: row.Line, Fields: make(map[string]string, len(Columns))}
	for _, c := range Columns {
		v.Fields[c] = strings.TrimSpace(row.Get(c))
	}

	if v.Fields[ColName] == "" {
		v.Errors = append(v.Errors, RowValidationError{Field: ColName, Message: "Name is required"})
	}
	if v.Fields[ColAssetID] == "" {
		v.Errors = append(v.Errors, RowValidationError{Field: ColAssetID, Message: "Asset ID is required"})
	}

	// Empty status defaults silently; an unknown one is forced with a warning.
	status := v.Fields[ColStatus]
	if status == "" {
		v.Fields[ColStatus] = string(inventory.StatusAvailable)
	} else if st, ok := inventory.ParseAssetStatus(status); ok {
		v.Fields[ColStatus] = string(st)
	} else {
		v.Warnings = append(v.Warnings, RowValidationWarning{
			Field:   ColStatus,
			Message: fmt.Sprintf("Status %q will be set to %q", status, inventory.StatusAvailable),
		})
		v.Fields[ColStatus] = string(inventory.StatusAvailable)
	}

	var price *float64
	if raw := v.Fields[ColPurchasePrice]; raw != "" {
		if p, err := ParsePrice(raw); err != nil {
			v.Warnings = append(v.Warnings, RowValidationWarning{
				Field:   ColPurchasePrice,
				Message: "Invalid purchase price, will be cleared",
			})
			v.Fields[ColPurchasePrice] = ""
		} else {
			price = &p
			v.Fields[ColPurchasePrice] = strconv.FormatFloat(p, 'f', -1, 64)
		}
	}

	if raw := v.Fields[ColPurchaseDate]; raw != "" {
		if d, err := ParseDate(raw); err != nil {
			v.Warnings = append(v.Warnings, RowValidationWarning{
				Field:   ColPurchaseDate,
				Message: "Invalid date format, will be cleared",
			})
			v.Fields[ColPurchaseDate] = ""
		} else {
			v.Fields[ColPurchaseDate] = d
		}
	}

	v.Record = ToAsset(v.Fields, price)
	return v
}

// ToAsset builds the create record for corrected fields. Empty optional
// text becomes absent; status defaults to available.
func ToAsset(fields map[string]string, price *float64) inventory.Asset {
	status, ok := inventory.ParseAssetStatus(fields[ColStatus])
	if !ok {
		status = inventory.StatusAvailable
	}
	return inventory.Asset{
		Name:          fields[ColName],
		AssetID:       fields[ColAssetID],
		Make:          optional(fields[ColMake]),
		Model:         optional(fields[ColModel]),
		SerialNumber:  optional(fields[ColSerialNumber]),
		Status:        status,
		PurchaseDate:  optional(fields[ColPurchaseDate]),
		PurchasePrice: price,
		Supplier:      optional(fields[ColSupplier]),
		Description:   optional(fields[ColDescription]),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
