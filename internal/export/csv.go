package export

import (
	"encoding/csv"
	"io"
)

// WriteCSV renders the table followed by a blank line and the statistics.
func WriteCSV(w io.Writer, vm ViewModel) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(vm.Headers()); err != nil {
		return err
	}
	for _, r := range vm.Rows {
		if err := cw.Write(vm.Values(r)); err != nil {
			return err
		}
	}
	if err := cw.Write(nil); err != nil {
		return err
	}
	for _, kv := range vm.StatLines() {
		if err := cw.Write(kv[:]); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
