package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"cheaphours/internal/record"
)

var csvHeader = []string{"time", "price", "amount"}

// ErrParse matches every *ParseError via errors.Is.
var ErrParse = errors.New("storage: parse error")

// ParseError names the offending line of a persisted file.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("storage: line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// WriteCSV serialises the store as time,price,amount rows in ascending time.
func (s *Store) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, k := range s.keys {
		r := s.records[k]
		row := []string{
			r.Time().Format(record.TimeLayout),
			record.FormatValue(r.Price()),
			record.FormatValue(r.Amount()),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadCSV replaces the store content with the rows read from r. On any
// error the store is left untouched.
func (s *Store) ReadCSV(r io.Reader) error {
	scratch, err := parseCSV(r)
	if err != nil {
		return err
	}
	s.replace(scratch)
	return nil
}

func parseCSV(r io.Reader) (*Store, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &ParseError{Line: 1, Err: errors.New("missing header")}
	}
	if err != nil {
		return nil, csvError(err)
	}
	for i, name := range csvHeader {
		if header[i] != name {
			return nil, &ParseError{Line: 1, Err: fmt.Errorf("unexpected header %q, want time,price,amount", header[i])}
		}
	}

	scratch := NewStore()
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		line, _ := reader.FieldPos(0)

		rec, err := parseRow(row)
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
		if _, _, err := scratch.Add(rec); err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}
	}
	return scratch, nil
}

func parseRow(row []string) (record.Record, error) {
	for i, field := range row {
		if field == "" {
			return record.Record{}, fmt.Errorf("empty %s field", csvHeader[i])
		}
	}
	ts, err := record.ParseTime(row[0])
	if err != nil {
		return record.Record{}, err
	}
	price, err := record.ParseValue(row[1])
	if err != nil {
		return record.Record{}, err
	}
	amount, err := record.ParseValue(row[2])
	if err != nil {
		return record.Record{}, err
	}
	return record.New(ts, price, amount), nil
}

func csvError(err error) error {
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return &ParseError{Line: perr.Line, Err: perr.Err}
	}
	return err
}
