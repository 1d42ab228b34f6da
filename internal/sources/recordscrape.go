package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lvonguyen/numintel/internal/collect"
	"github.com/lvonguyen/numintel/internal/evidence"
)

// SourceRecordScrape is the stable id of the public-records source.
const SourceRecordScrape = "recordscrape"

// RecordScrape brute-forces a public-records aggregator with every
// discovered name. It is slow, block-prone and low signal, which is why
// smart mode skips it.
type RecordScrape struct {
	cfg    ClientConfig
	client *http.Client
}

type recordScrapeResponse struct {
	Entries []recordScrapeEntry `json:"entries"`
}

type recordScrapeEntry struct {
	FullName string `json:"full_name"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zip      string `json:"zip"`
}

// NewRecordScrape builds the public-records collector.
func NewRecordScrape(cfg ClientConfig) *RecordScrape {
	return &RecordScrape{cfg: cfg, client: cfg.httpClient()}
}

// Name implements collect.Collector.
func (r *RecordScrape) Name() string { return SourceRecordScrape }

// Submit implements collect.Collector.
func (r *RecordScrape) Submit(ctx context.Context, q collect.Query) (evidence.Batch, *collect.Fault) {
	now := time.Now().UTC()
	var batch evidence.Batch
	for _, name := range q.KnownNames {
		entries, fault := r.search(ctx, name)
		if fault != nil {
			return nil, fault
		}
		for i, entry := range entries {
			group := fmt.Sprintf("%s:%s:%d", SourceRecordScrape, name, i)
			address := strings.TrimSpace(strings.Join([]string{
				entry.Street, entry.City, entry.State, entry.Zip,
			}, " "))
			add := func(kind evidence.Kind, value string) {
				if value == "" {
					return
				}
				batch = append(batch, evidence.Record{
					SourceID:    SourceRecordScrape,
					Kind:        kind,
					RawValue:    value,
					Weight:      r.cfg.Weight,
					CoGroup:     group,
					CollectedAt: now,
				})
			}
			add(evidence.KindName, entry.FullName)
			add(evidence.KindAddress, address)
		}
	}
	return batch, nil
}

func (r *RecordScrape) search(ctx context.Context, name string) ([]recordScrapeEntry, *collect.Fault) {
	req, err := newRequest(ctx, r.cfg, "/records/search", url.Values{"name": {name}})
	if err != nil {
		return nil, &collect.Fault{Kind: collect.FaultUnknown, Message: err.Error()}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, faultFromErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, faultFromStatus(SourceRecordScrape, resp.StatusCode)
	}

	var payload recordScrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, decodeFault(SourceRecordScrape, err)
	}
	return payload.Entries, nil
}
