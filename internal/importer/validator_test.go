package importer

import (
	"strings"
	"testing"

	"github.com/JonMunkholm/assetinventory/internal/inventory"
)

func row(line int, kv ...string) RawRow {
	fields := make(map[string]string)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i]] = kv[i+1]
	}
	return RawRow{Line: line, Fields: fields}
}

func TestValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name       string
		row        RawRow
		wantErrors []string
	}{
		{"missing name", row(2, "asset_id", "LP001"), []string{"Name is required"}},
		{"blank name", row(2, "name", "   ", "asset_id", "LP001"), []string{"Name is required"}},
		{"missing asset id", row(2, "name", "Laptop"), []string{"Asset ID is required"}},
		{"missing both", row(2, "status", "Broken"), []string{"Name is required", "Asset ID is required"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Validate([]RawRow{tt.row})
			if len(out.Rejected) != 1 {
				t.Fatalf("rejected = %d, want 1", len(out.Rejected))
			}
			if len(out.Warned) != 0 || len(out.Clean) != 0 {
				t.Errorf("row also in warned=%d clean=%d", len(out.Warned), len(out.Clean))
			}
			rej := out.Rejected[0]
			if rej.Line != 2 {
				t.Errorf("line = %d, want 2", rej.Line)
			}
			if len(rej.Errors) != len(tt.wantErrors) {
				t.Fatalf("errors = %v, want %v", rej.Errors, tt.wantErrors)
			}
			for i, want := range tt.wantErrors {
				if rej.Errors[i].Message != want {
					t.Errorf("error %d = %q, want %q", i, rej.Errors[i].Message, want)
				}
			}
		})
	}
}

func TestValidateRowClass(t *testing.T) {
	tests := []struct {
		name string
		row  RawRow
		want string
	}{
		{"clean", row(2, "name", "Laptop", "asset_id", "LP001"), ClassClean},
		{"warned", row(2, "name", "Laptop", "asset_id", "LP001", "status", "Broken"), ClassWarned},
		{"rejected with warnings", row(2, "asset_id", "LP001", "status", "Broken"), ClassRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateRow(tt.row).Class(); got != tt.want {
				t.Errorf("Class() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateRejectedKeepsOriginalFieldsAndWarnings(t *testing.T) {
	out := Validate([]RawRow{row(3, "asset_id", "X1", "status", "Broken", "purchase_price", "abc")})
	if len(out.Rejected) != 1 {
		t.Fatalf("rejected = %d, want 1", len(out.Rejected))
	}
	rej := out.Rejected[0]
	if rej.Fields["status"] != "Broken" || rej.Fields["purchase_price"] != "abc" {
		t.Errorf("rejected fields were modified: %v", rej.Fields)
	}
	if len(rej.Warnings) != 2 {
		t.Errorf("warnings = %v, want 2", rej.Warnings)
	}
}

func TestValidateStatus(t *testing.T) {
	tests := []struct {
		name        string
		status      string
		wantStatus  inventory.AssetStatus
		wantWarning string
	}{
		{"empty defaults silently", "", inventory.StatusAvailable, ""},
		{"known lower", "checked_out", inventory.StatusCheckedOut, ""},
		{"known mixed case", "In_Repair", inventory.StatusInRepair, ""},
		{"known padded", " retired ", inventory.StatusRetired, ""},
		{"installed", "INSTALLED", inventory.StatusInstalled, ""},
		{"unknown forced", "Broken", inventory.StatusAvailable, `Status "Broken" will be set to "available"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Validate([]RawRow{row(2, "name", "Laptop", "asset_id", "LP001", "status", tt.status)})
			records := out.Valid()
			if len(records) != 1 {
				t.Fatalf("valid = %d, want 1", len(records))
			}
			if records[0].Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", records[0].Status, tt.wantStatus)
			}
			if tt.wantWarning == "" {
				if len(out.Clean) != 1 {
					t.Errorf("row not clean: warned=%v", out.Warned)
				}
				return
			}
			if len(out.Warned) != 1 {
				t.Fatalf("warned = %d, want 1", len(out.Warned))
			}
			w := out.Warned[0].Warnings
			if len(w) != 1 || w[0].Message != tt.wantWarning {
				t.Errorf("warnings = %v, want [%s]", w, tt.wantWarning)
			}
			if !strings.Contains(w[0].Message, "available") {
				t.Errorf("warning %q does not mention the forced default", w[0].Message)
			}
		})
	}
}

func TestValidatePrice(t *testing.T) {
	tests := []struct {
		name      string
		price     string
		want      *float64
		wantWarns int
	}{
		{"empty is absent", "", nil, 0},
		{"plain", "1200.00", ptr(1200.0), 0},
		{"currency and thousands", "$1,200.50", ptr(1200.5), 0},
		{"zero", "0", ptr(0.0), 0},
		{"letters", "abc", nil, 1},
		{"negative", "-5", nil, 1},
		{"trailing text", "12abc", nil, 1},
		{"exponent", "1e3", nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValidateRow(row(2, "name", "Cable", "asset_id", "CBL003", "purchase_price", tt.price))
			if len(v.Warnings) != tt.wantWarns {
				t.Fatalf("warnings = %v, want %d", v.Warnings, tt.wantWarns)
			}
			got := v.Record.PurchasePrice
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("price = %v, want absent", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("price = %v, want %v", got, *tt.want)
			}
			if tt.wantWarns > 0 {
				if v.Fields["purchase_price"] != "" {
					t.Errorf("corrected price field = %q, want cleared", v.Fields["purchase_price"])
				}
				if v.Warnings[0].Field != "purchase_price" {
					t.Errorf("warning field = %q, want purchase_price", v.Warnings[0].Field)
				}
			}
		})
	}
}

func TestValidateDate(t *testing.T) {
	tests := []struct {
		name      string
		date      string
		want      string
		wantWarns int
	}{
		{"empty", "", "", 0},
		{"iso", "2023-01-15", "2023-01-15", 0},
		{"us", "1/15/2023", "2023-01-15", 0},
		{"long", "Jan 15, 2023", "2023-01-15", 0},
		{"two digit year", "01/15/23", "2023-01-15", 0},
		{"garbage", "someday", "", 1},
		{"impossible day", "2023-02-30", "", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValidateRow(row(2, "name", "Cam", "asset_id", "CM002", "purchase_date", tt.date))
			if len(v.Warnings) != tt.wantWarns {
				t.Fatalf("warnings = %v, want %d", v.Warnings, tt.wantWarns)
			}
			got := ""
			if v.Record.PurchaseDate != nil {
				got = *v.Record.PurchaseDate
			}
			if got != tt.want {
				t.Errorf("purchase_date = %q, want %q", got, tt.want)
			}
			if tt.wantWarns > 0 && v.Warnings[0].Message != "Invalid date format, will be cleared" {
				t.Errorf("warning = %q", v.Warnings[0].Message)
			}
		})
	}
}

func TestValidatePartitionsEveryRowOnce(t *testing.T) {
	rows := []RawRow{
		row(2, "name", "A", "asset_id", "1"),
		row(3, "name", "B", "asset_id", "2", "status", "lost"),
		row(4, "asset_id", "3"),
		row(5, "name", "D", "asset_id", "4", "purchase_price", "9.99"),
		row(6, "name", "E", "asset_id", "5", "purchase_date", "nope", "purchase_price", "x"),
	}
	out := Validate(rows)

	if out.Considered != len(rows) {
		t.Errorf("considered = %d, want %d", out.Considered, len(rows))
	}
	if total := len(out.Clean) + len(out.Warned) + len(out.Rejected); total != len(rows) {
		t.Errorf("classified %d rows, want %d", total, len(rows))
	}
	if len(out.Clean) != 2 || len(out.Warned) != 2 || len(out.Rejected) != 1 {
		t.Errorf("clean=%d warned=%d rejected=%d, want 2/2/1", len(out.Clean), len(out.Warned), len(out.Rejected))
	}
	if len(out.Warned[1].Warnings) != 2 {
		t.Errorf("row 6 warnings = %v, want 2", out.Warned[1].Warnings)
	}

	var ids []string
	for _, a := range out.Valid() {
		ids = append(ids, a.AssetID)
	}
	if strings.Join(ids, ",") != "1,2,4,5" {
		t.Errorf("valid order = %v, want [1 2 4 5]", ids)
	}
}

func TestToAssetOptionalFields(t *testing.T) {
	a := ToAsset(map[string]string{
		"name":     "Laptop",
		"asset_id": "LP001",
		"make":     "Dell",
		"model":    "",
	}, nil)
	if a.Make == nil || *a.Make != "Dell" {
		t.Errorf("make = %v, want Dell", a.Make)
	}
	if a.Model != nil || a.SerialNumber != nil || a.Supplier != nil || a.Description != nil {
		t.Error("empty optional text fields should be absent")
	}
	if a.Status != inventory.StatusAvailable {
		t.Errorf("status = %q, want available", a.Status)
	}
	if a.PurchasePrice != nil || a.PurchaseDate != nil {
		t.Error("price and date should be absent")
	}
}

func ptr(f float64) *float64 { return &f }
