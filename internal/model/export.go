package model

// ExportRow is the tabular export form of a PageRecord.
// The embedding vector is deliberately absent.
type ExportRow struct {
	URL            string `json:"url"`
	Title          string `json:"title"`
	ContentPreview string `json:"content_preview"`
}

// NewExportRow converts a record into an export row.
func NewExportRow(p *PageRecord) ExportRow {
	return ExportRow{
		URL:            p.URL,
		Title:          p.Title,
		ContentPreview: p.Preview(),
	}
}

// NewExportRows converts records into export rows, preserving order.
func NewExportRows(records []*PageRecord) []ExportRow {
	rows := make([]ExportRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, NewExportRow(r))
	}
	return rows
}
