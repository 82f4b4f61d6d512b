// Package record holds the hourly energy observation shared by every
// other package: a UTC timestamp plus an optional price and an optional
// consumed amount.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is ISO-8601 with an explicit numeric offset (+00:00 for UTC).
const TimeLayout = "2006-01-02T15:04:05-07:00"

// NaNToken is written in text formats for an undefined value.
const NaNToken = "nan"

// ErrInvalidRecord reports constructor input that cannot form a record.
var ErrInvalidRecord = errors.New("invalid record")

// Undefined is the "not yet known" value for price and amount.
var Undefined = decimal.NullDecimal{}

// Record is one hourly price/consumption observation.
type Record struct {
	time   time.Time
	price  decimal.NullDecimal
	amount decimal.NullDecimal
}

// New builds a record at t, normalised to UTC.
func New(t time.Time, price, amount decimal.NullDecimal) Record {
	return Record{time: Normalize(t), price: price, amount: amount}
}

// FromFloats builds a record where NaN marks an undefined field.
func FromFloats(t time.Time, price, amount float64) (Record, error) {
	p, err := floatValue(price)
	if err != nil {
		return Record{}, fmt.Errorf("%w: price: %v", ErrInvalidRecord, err)
	}
	a, err := floatValue(amount)
	if err != nil {
		return Record{}, fmt.Errorf("%w: amount: %v", ErrInvalidRecord, err)
	}
	return New(t, p, a), nil
}

// Value wraps a known number. Non-finite input yields Undefined.
func Value(f float64) decimal.NullDecimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Undefined
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(f))
}

func floatValue(f float64) (decimal.NullDecimal, error) {
	if math.IsNaN(f) {
		return Undefined, nil
	}
	if math.IsInf(f, 0) {
		return Undefined, fmt.Errorf("infinite value")
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(f)), nil
}

// ParseValue reads a numeric field. Empty input and "nan" (any case) are undefined.
func ParseValue(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, NaNToken) {
		return Undefined, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Undefined, fmt.Errorf("%w: value %q: %v", ErrInvalidRecord, s, err)
	}
	return decimal.NewNullDecimal(d), nil
}

// Time returns the UTC timestamp.
func (r Record) Time() time.Time { return r.time }

// Price returns the price, possibly undefined.
func (r Record) Price() decimal.NullDecimal { return r.price }

// Amount returns the consumed amount, possibly undefined.
func (r Record) Amount() decimal.NullDecimal { return r.amount }

func (r Record) HasPrice() bool  { return r.price.Valid }
func (r Record) HasAmount() bool { return r.amount.Valid }

// Update applies the defined arguments and reports which stored fields changed.
func (r *Record) Update(price, amount decimal.NullDecimal) (priceChanged, amountChanged bool) {
	priceChanged = apply(&r.price, price)
	amountChanged = apply(&r.amount, amount)
	return priceChanged, amountChanged
}

func apply(dst *decimal.NullDecimal, v decimal.NullDecimal) bool {
	if !v.Valid {
		return false
	}
	if dst.Valid && dst.Decimal.Equal(v.Decimal) {
		return false
	}
	*dst = v
	return true
}

// Equal compares timestamp and both fields; undefined only equals undefined.
func (r Record) Equal(other Record) bool {
	return r.time.Equal(other.time) &&
		nullEqual(r.price, other.price) &&
		nullEqual(r.amount, other.amount)
}

func nullEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

// FormatValue renders a field with four decimals, or NaNToken.
func FormatValue(v decimal.NullDecimal) string {
	if !v.Valid {
		return NaNToken
	}
	return v.Decimal.StringFixed(4)
}

func (r Record) String() string {
	return fmt.Sprintf("%s,%s,%s", r.time.Format(TimeLayout), FormatValue(r.price), FormatValue(r.amount))
}

// Dict is the canonical map form of a record. Values keep their full
// decimal precision; invalid fields are undefined.
type Dict struct {
	Time   string              `json:"time"`
	Price  decimal.NullDecimal `json:"price"`
	Amount decimal.NullDecimal `json:"amount"`
}

// ToDict converts the record to its canonical map form.
func (r Record) ToDict() Dict {
	return Dict{
		Time:   r.time.Format(TimeLayout),
		Price:  r.price,
		Amount: r.amount,
	}
}

// FromDict is the inverse of ToDict.
func FromDict(d Dict) (Record, error) {
	t, err := ParseTime(d.Time)
	if err != nil {
		return Record{}, err
	}
	return New(t, d.Price, d.Amount), nil
}

// MarshalJSON writes values as bare JSON numbers and undefined as null.
func (d Dict) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time   string          `json:"time"`
		Price  json.RawMessage `json:"price"`
		Amount json.RawMessage `json:"amount"`
	}{d.Time, jsonNumber(d.Price), jsonNumber(d.Amount)})
}

func jsonNumber(v decimal.NullDecimal) json.RawMessage {
	if !v.Valid {
		return json.RawMessage("null")
	}
	return json.RawMessage(v.Decimal.String())
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToDict())
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var d Dict
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	parsed, err := FromDict(d)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
