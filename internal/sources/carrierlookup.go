package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/lvonguyen/numintel/internal/collect"
	"github.com/lvonguyen/numintel/internal/evidence"
)

// SourceCarrierLookup is the stable id of the validation source.
const SourceCarrierLookup = "carrierlookup"

// CarrierLookup is the authoritative phone validation collector. It
// resolves carrier, line type and coarse location for the target number
// and anchors the investigation: every run starts here.
type CarrierLookup struct {
	cfg    ClientConfig
	client *http.Client
}

type carrierResponse struct {
	Valid       bool   `json:"valid"`
	Carrier     string `json:"carrier"`
	LineType    string `json:"line_type"`
	Location    string `json:"location"`
	CountryName string `json:"country_name"`
}

// NewCarrierLookup builds the validation collector.
func NewCarrierLookup(cfg ClientConfig) *CarrierLookup {
	return &CarrierLookup{cfg: cfg, client: cfg.httpClient()}
}

// Name implements collect.Collector.
func (c *CarrierLookup) Name() string { return SourceCarrierLookup }

// Submit implements collect.Collector.
func (c *CarrierLookup) Submit(ctx context.Context, q collect.Query) (evidence.Batch, *collect.Fault) {
	req, err := newRequest(ctx, c.cfg, "/v1/validate", url.Values{"number": {q.Phone}})
	if err != nil {
		return nil, &collect.Fault{Kind: collect.FaultUnknown, Message: err.Error()}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, faultFromErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, faultFromStatus(SourceCarrierLookup, resp.StatusCode)
	}

	var payload carrierResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, decodeFault(SourceCarrierLookup, err)
	}
	if !payload.Valid {
		return nil, nil
	}

	// The whole response is one originating record, so its attributes
	// share a co-occurrence group.
	group := SourceCarrierLookup + ":" + q.Phone
	now := time.Now().UTC()
	var batch evidence.Batch
	add := func(kind evidence.Kind, value string) {
		if value == "" {
			return
		}
		batch = append(batch, evidence.Record{
			SourceID:    SourceCarrierLookup,
			Kind:        kind,
			RawValue:    value,
			Weight:      c.cfg.Weight,
			CoGroup:     group,
			CollectedAt: now,
		})
	}
	add(evidence.KindPhoneMeta, payload.Carrier)
	add(evidence.KindPhoneMeta, payload.LineType)
	add(evidence.KindAddress, payload.Location)
	return batch, nil
}
