// Package report decodes rank report responses and correlates them with
// outstanding requests.
package report

import (
	"rank-client/internal/errors"
	"rank-client/internal/models"
	"rank-client/internal/wire"
)

// Decoder walks the records of a Report message one at a time, in source order.
// It is single use: once exhausted or failed, Next keeps returning false.
type Decoder struct {
	records wire.Element
	count   int
	next    int
	current models.ReportRecord
	err     error
	done    bool
}

// NewDecoder returns a decoder over the records of msg. Structural problems with
// the message itself are reported by the first call to Next.
func NewDecoder(msg wire.Message) *Decoder {
	d := &Decoder{}

	root, err := msg.Root()
	if err != nil {
		d.fail(errors.NewRecordError(-1, "elements", "payload is not valid JSON", err))
		return d
	}
	records, err := root.GetElement("records")
	if err != nil {
		d.fail(errors.NewRecordError(-1, "records", "missing record collection", err))
		return d
	}
	if !records.IsArray() {
		d.fail(errors.NewRecordError(-1, "records", "record collection is not a sequence", wire.ErrElementType))
		return d
	}

	d.records = records
	d.count = records.NumValues()
	return d
}

// Next decodes the next record. It returns false when the records are exhausted
// or a record fails to decode; Err distinguishes the two.
func (d *Decoder) Next() bool {
	if d.done {
		return false
	}
	if d.next >= d.count {
		d.done = true
		return false
	}

	i := d.next
	d.next++

	el, err := d.records.ValueAt(i)
	if err != nil {
		d.fail(errors.NewRecordError(i, "", "unreadable record", err))
		return false
	}
	rec, err := decodeRecord(i, el)
	if err != nil {
		d.fail(err)
		return false
	}
	d.current = rec
	return true
}

// Record returns the record decoded by the last successful call to Next.
func (d *Decoder) Record() models.ReportRecord {
	return d.current
}

// Err returns the first decoding error, if any.
func (d *Decoder) Err() error {
	return d.err
}

// Len returns the number of records present in the message.
func (d *Decoder) Len() int {
	return d.count
}

func (d *Decoder) fail(err error) {
	d.err = err
	d.done = true
	d.current = models.ReportRecord{}
}

// Decode collects every record of msg. A single malformed record rejects the
// whole response.
func Decode(msg wire.Message) ([]models.ReportRecord, error) {
	d := NewDecoder(msg)
	records := make([]models.ReportRecord, 0, d.Len())
	for d.Next() {
		records = append(records, d.Record())
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func decodeRecord(i int, el wire.Element) (models.ReportRecord, error) {
	var rec models.ReportRecord

	broker, err := el.GetElement("broker")
	if err != nil {
		return rec, errors.NewRecordError(i, "broker", "missing broker", err)
	}
	if rec.Broker, err = broker.GetAsString("acronym"); err != nil {
		return rec, errors.NewRecordError(i, "broker.acronym", "expected text", err)
	}

	floats := []struct {
		name string
		dst  *float64
	}{
		{"bought", &rec.Bought},
		{"crossed", &rec.Crossed},
		{"highTouch", &rec.HighTouch},
		{"lowTouch", &rec.LowTouch},
		{"sold", &rec.Sold},
		{"total", &rec.Total},
		{"traded", &rec.Traded},
	}
	for _, f := range floats {
		v, err := el.GetAsFloat64(f.name)
		if err != nil {
			return rec, errors.NewRecordError(i, f.name, "expected a number", err)
		}
		*f.dst = v
	}

	if rec.NumReports, err = el.GetAsInt64("numReports"); err != nil {
		return rec, errors.NewRecordError(i, "numReports", "expected an integer", err)
	}

	return rec, nil
}
