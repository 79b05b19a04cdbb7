package importer

import "strings"

// TemplateFileName is the suggested download name for Template.
const TemplateFileName = "asset_import_template.csv"

var templateRows = [][]string{
	{"Dell Laptop", "LP001", "Dell", "Latitude 7420", "DL123456", "available", "2023-01-15", "1200.00", "Tech Supplier", "15 inch laptop"},
	{"Conference Room Camera", "CM002", "Sony", "PXW-Z90", "SN789123", "checked_out", "2023-02-10", "800.50", "AV Equipment Co", "4K conference camera"},
	{"Ethernet Cable 50ft", "CBL003", "Monoprice", "Cat6", "MP456789", "available", "2023-03-05", "25.99", "Cable Co", "Cat6 ethernet cable"},
}

// Template returns the example import file: the header and three rows.
func Template() string {
	var b strings.Builder
	b.WriteString(strings.Join(Columns, ","))
	for _, row := range templateRows {
		b.WriteByte('\n')
		for i, v := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(v)
			b.WriteByte('"')
		}
	}
	b.WriteByte('\n')
	return b.String()
}
