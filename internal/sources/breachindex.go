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

// SourceBreachIndex is the stable id of the breach-search source.
const SourceBreachIndex = "breachindex"

// BreachIndex runs the multi-parameter breach-style search: the target
// phone plus any already-discovered emails and usernames. Each returned
// row is one leaked record, so its fields form a co-occurrence group.
// This is the strongest evidence the pipeline sees, and what the mode
// decision counts.
type BreachIndex struct {
	cfg    ClientConfig
	client *http.Client
}

type breachIndexResponse struct {
	Rows []breachIndexRow `json:"rows"`
}

type breachIndexRow struct {
	Breach   string `json:"breach"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Address  string `json:"address"`
}

// NewBreachIndex builds the breach-search collector.
func NewBreachIndex(cfg ClientConfig) *BreachIndex {
	return &BreachIndex{cfg: cfg, client: cfg.httpClient()}
}

// Name implements collect.Collector.
func (b *BreachIndex) Name() string { return SourceBreachIndex }

// Submit implements collect.Collector.
func (b *BreachIndex) Submit(ctx context.Context, q collect.Query) (evidence.Batch, *collect.Fault) {
	params := url.Values{"phone": {q.Phone}}
	if len(q.KnownEmails) > 0 {
		params.Set("emails", strings.Join(q.KnownEmails, ","))
	}
	if len(q.KnownUsernames) > 0 {
		params.Set("usernames", strings.Join(q.KnownUsernames, ","))
	}

	req, err := newRequest(ctx, b.cfg, "/api/v2/search", params)
	if err != nil {
		return nil, &collect.Fault{Kind: collect.FaultUnknown, Message: err.Error()}
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, faultFromErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, faultFromStatus(SourceBreachIndex, resp.StatusCode)
	}

	var payload breachIndexResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, decodeFault(SourceBreachIndex, err)
	}

	now := time.Now().UTC()
	var batch evidence.Batch
	for i, row := range payload.Rows {
		// Each breach database is an independent source: two leaks
		// agreeing on a value is corroboration, so rows must not
		// collapse into one source id during fusion.
		sourceID := SourceBreachIndex
		if row.Breach != "" {
			sourceID = SourceBreachIndex + ":" + row.Breach
		}
		group := fmt.Sprintf("%s:%d", sourceID, i)
		add := func(kind evidence.Kind, value string) {
			if value == "" {
				return
			}
			batch = append(batch, evidence.Record{
				SourceID:    sourceID,
				Kind:        kind,
				RawValue:    value,
				Weight:      b.cfg.Weight,
				CoGroup:     group,
				CollectedAt: now,
			})
		}
		add(evidence.KindName, row.Name)
		add(evidence.KindEmail, row.Email)
		add(evidence.KindUsername, row.Username)
		add(evidence.KindAddress, row.Address)
	}
	return batch, nil
}
