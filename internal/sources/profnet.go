package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lvonguyen/numintel/internal/collect"
	"github.com/lvonguyen/numintel/internal/evidence"
)

// SourceProfNet is the stable id of the professional-network source.
const SourceProfNet = "profnet"

// ProfNet searches a professional-network mirror for profiles matching
// the discovered names and emails. Employment context is valuable in
// both modes, so this stage always runs.
type ProfNet struct {
	cfg    ClientConfig
	client *http.Client
}

type profNetResponse struct {
	Profiles []profNetProfile `json:"profiles"`
}

type profNetProfile struct {
	Name     string `json:"name"`
	Handle   string `json:"handle"`
	Headline string `json:"headline"`
	Company  string `json:"company"`
	Email    string `json:"email"`
}

// NewProfNet builds the professional-network collector.
func NewProfNet(cfg ClientConfig) *ProfNet {
	return &ProfNet{cfg: cfg, client: cfg.httpClient()}
}

// Name implements collect.Collector.
func (p *ProfNet) Name() string { return SourceProfNet }

// Submit implements collect.Collector.
func (p *ProfNet) Submit(ctx context.Context, q collect.Query) (evidence.Batch, *collect.Fault) {
	params := url.Values{}
	for _, name := range q.KnownNames {
		params.Add("name", name)
	}
	for _, email := range q.KnownEmails {
		params.Add("email", email)
	}
	if len(params) == 0 {
		return nil, nil
	}

	req, err := newRequest(ctx, p.cfg, "/v1/profiles", params)
	if err != nil {
		return nil, &collect.Fault{Kind: collect.FaultUnknown, Message: err.Error()}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, faultFromErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, faultFromStatus(SourceProfNet, resp.StatusCode)
	}

	var payload profNetResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, decodeFault(SourceProfNet, err)
	}

	now := time.Now().UTC()
	var batch evidence.Batch
	for i, profile := range payload.Profiles {
		group := fmt.Sprintf("%s:%s:%d", SourceProfNet, profile.Handle, i)
		add := func(kind evidence.Kind, value string) {
			if value == "" {
				return
			}
			batch = append(batch, evidence.Record{
				SourceID:    SourceProfNet,
				Kind:        kind,
				RawValue:    value,
				Weight:      p.cfg.Weight,
				CoGroup:     group,
				CollectedAt: now,
			})
		}
		add(evidence.KindName, profile.Name)
		add(evidence.KindUsername, profile.Handle)
		add(evidence.KindEmail, profile.Email)
	}
	return batch, nil
}
