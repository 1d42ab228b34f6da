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

// SourcePeopleFinder is the stable id of the people-search source.
const SourcePeopleFinder = "peoplefinder"

// PeopleFinder queries a reverse phone people-search service for
// candidate names, addresses and associated emails. It is the primary
// name-discovery stage.
type PeopleFinder struct {
	cfg    ClientConfig
	client *http.Client
}

type peopleFinderResponse struct {
	People []peopleFinderPerson `json:"people"`
}

type peopleFinderPerson struct {
	Name      string   `json:"name"`
	Age       int      `json:"age"`
	Addresses []string `json:"addresses"`
	Emails    []string `json:"associated_emails"`
}

// NewPeopleFinder builds the people-search collector.
func NewPeopleFinder(cfg ClientConfig) *PeopleFinder {
	return &PeopleFinder{cfg: cfg, client: cfg.httpClient()}
}

// Name implements collect.Collector.
func (p *PeopleFinder) Name() string { return SourcePeopleFinder }

// Submit implements collect.Collector.
func (p *PeopleFinder) Submit(ctx context.Context, q collect.Query) (evidence.Batch, *collect.Fault) {
	req, err := newRequest(ctx, p.cfg, "/api/reverse", url.Values{"phone": {q.Phone}})
	if err != nil {
		return nil, &collect.Fault{Kind: collect.FaultUnknown, Message: err.Error()}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, faultFromErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, faultFromStatus(SourcePeopleFinder, resp.StatusCode)
	}

	var payload peopleFinderResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, decodeFault(SourcePeopleFinder, err)
	}

	now := time.Now().UTC()
	var batch evidence.Batch
	for i, person := range payload.People {
		// One listed person is one originating record.
		group := fmt.Sprintf("%s:%s:%d", SourcePeopleFinder, q.Phone, i)
		add := func(kind evidence.Kind, value string) {
			if value == "" {
				return
			}
			batch = append(batch, evidence.Record{
				SourceID:    SourcePeopleFinder,
				Kind:        kind,
				RawValue:    value,
				Weight:      p.cfg.Weight,
				CoGroup:     group,
				CollectedAt: now,
			})
		}
		add(evidence.KindName, person.Name)
		for _, addr := range person.Addresses {
			add(evidence.KindAddress, addr)
		}
		for _, email := range person.Emails {
			add(evidence.KindEmail, email)
		}
	}
	return batch, nil
}
