// Package models provides domain models for the rank report client.
package models

import (
	"fmt"
	"strings"
	"time"
)

// GroupBy controls whether report rows are aggregated by broker or by security.
type GroupBy string

const (
	GroupByBroker   GroupBy = "Broker"
	GroupBySecurity GroupBy = "Security"
)

// Source identifies where the ranking data comes from.
type Source string

const (
	SourceBrokerContributed Source = "Broker Contributed"
)

// Units is the unit the traded amounts are reported in.
type Units string

const (
	UnitsShares Units = "Shares"
	UnitsLocal  Units = "Local"
	UnitsUSD    Units = "USD"
	UnitsEUR    Units = "EUR"
	UnitsGBP    Units = "GBP"
)

// AllGroupBy lists the supported grouping modes.
var AllGroupBy = []GroupBy{GroupByBroker, GroupBySecurity}

// AllSources lists the supported sources.
var AllSources = []Source{SourceBrokerContributed}

// AllUnits lists the supported units.
var AllUnits = []Units{UnitsShares, UnitsLocal, UnitsUSD, UnitsEUR, UnitsGBP}

// ParseGroupBy parses a grouping mode. Matching is case-insensitive.
func ParseGroupBy(s string) (GroupBy, error) {
	for _, g := range AllGroupBy {
		if strings.EqualFold(s, string(g)) {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown grouping %q", s)
}

// ParseSource parses a source. Matching is case-insensitive.
func ParseSource(s string) (Source, error) {
	for _, src := range AllSources {
		if strings.EqualFold(s, string(src)) {
			return src, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// ParseUnits parses a unit. Matching is case-insensitive.
func ParseUnits(s string) (Units, error) {
	for _, u := range AllUnits {
		if strings.EqualFold(s, string(u)) {
			return u, nil
		}
	}
	return "", fmt.Errorf("unknown units %q", s)
}

// DateLayout is the calendar date format used on the wire and in config.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool {
	return d.Time().After(o.Time())
}

func (d Date) String() string {
	return d.Time().Format(DateLayout)
}
