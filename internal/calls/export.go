package calls

import (
	"encoding/csv"
	"io"
)

var exportHeader = []string{"Phone Number", "Status", "Duration", "Call SID", "Time"}

// WriteCSV writes one row per call in the given order.
func WriteCSV(w io.Writer, rows []Call) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, c := range rows {
		rec := []string{
			c.ToNumber,
			string(c.Status),
			FormatDuration(c.DurationSeconds),
			c.ProviderCallID,
			c.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
