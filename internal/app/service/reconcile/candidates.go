package reconcile

import (
	"net/url"
	"time"
)

// paramSet is one way of asking the report API for a date range. Gateways
// have differed over time in the date format and the date column they
// accept, so several are tried in order.
type paramSet struct {
	name       string
	dateLayout string
	queryBy    string
	condition  string
}

const (
	layoutCompact = "20060102150405"
	layoutUS      = "01/02/2006"
	layoutISO     = "2006-01-02"
)

var paramSets = []paramSet{
	{name: "compact_transaction_date", dateLayout: layoutCompact, queryBy: "transaction_date", condition: "complete"},
	{name: "us_transaction_date", dateLayout: layoutUS, queryBy: "transaction_date", condition: "complete"},
	{name: "iso_create_date", dateLayout: layoutISO, queryBy: "transaction_create_date", condition: "complete"},
	{name: "iso_settlement_date", dateLayout: layoutISO, queryBy: "settlement_date", condition: "complete,pendingsettlement"},
	{name: "iso_settlement_date_closed", dateLayout: layoutISO, queryBy: "settlement_date", condition: "closed"},
	{name: "iso_transaction_date_closed", dateLayout: layoutISO, queryBy: "transaction_date", condition: "closed"},
	{name: "iso_last_modified", dateLayout: layoutISO, queryBy: "last_modified"},
	{name: "iso_default", dateLayout: layoutISO},
}

type candidate struct {
	host   string
	name   string
	params url.Values
}

func (p paramSet) params(start, end time.Time) url.Values {
	v := url.Values{}
	v.Set("start_date", start.UTC().Format(p.dateLayout))
	v.Set("end_date", end.UTC().Format(p.dateLayout))
	if p.queryBy != "" {
		v.Set("query_by", p.queryBy)
	}
	if p.condition != "" {
		v.Set("condition", p.condition)
	}
	return v
}

// buildCandidates lists every (host, params) pair in the order they are
// tried: all parameter sets on the first host, then the next host.
func buildCandidates(hosts []string, start, end time.Time) []candidate {
	out := make([]candidate, 0, len(hosts)*len(paramSets))
	for _, h := range hosts {
		for _, p := range paramSets {
			out = append(out, candidate{host: h, name: p.name, params: p.params(start, end)})
		}
	}
	return out
}
