package output

import (
	"encoding/csv"
	"io"

	"github.com/segmentio/encoding/json"
)

// WriteCSV writes a header line and one line per record.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return err
	}
	for _, rec := range t.Records {
		if err := cw.Write(t.Row(rec)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes all records as a JSON array. With UUID set, every object
// starts with an id string.
func WriteJSON(w io.Writer, t Table) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	for i, rec := range t.Records {
		if i > 0 {
			if _, err := io.WriteString(w, ",\n"); err != nil {
				return err
			}
		}
		b, err := rec.MarshalJSON()
		if err != nil {
			return err
		}
		if t.UUID {
			id, err := json.Marshal(RecordID(rec))
			if err != nil {
				return err
			}
			prefix := append([]byte(`{"`+IDColumn+`":`), id...)
			if len(b) > 2 {
				prefix = append(prefix, ',')
			}
			b = append(prefix, b[1:]...)
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "]\n")
	return err
}

// WriteAuthorsCSV writes one name per line, without a header.
func WriteAuthorsCSV(w io.Writer, names []string) error {
	cw := csv.NewWriter(w)
	for _, name := range names {
		if err := cw.Write([]string{name}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAuthorsText writes the names separated by newlines.
func WriteAuthorsText(w io.Writer, names []string) error {
	for _, name := range names {
		if _, err := io.WriteString(w, name+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// WriteAuthorsJSON writes the names as a JSON array of strings.
func WriteAuthorsJSON(w io.Writer, names []string) error {
	if names == nil {
		names = []string{}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(names)
}
