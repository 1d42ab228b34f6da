package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lvonguyen/numintel/internal/collect"
	"github.com/lvonguyen/numintel/internal/evidence"
)

// SourceNameIndex is the stable id of the username-enumeration source.
const SourceNameIndex = "nameindex"

// NameIndex enumerates a username across social platforms and reports
// the handles that exist. Hits are independent existence checks, not
// co-occurring record fields, so they carry no group and a modest
// weight.
type NameIndex struct {
	cfg    ClientConfig
	client *http.Client
}

type nameIndexResponse struct {
	Hits []nameIndexHit `json:"hits"`
}

type nameIndexHit struct {
	Platform string `json:"platform"`
	Handle   string `json:"handle"`
	Exists   bool   `json:"exists"`
}

// NewNameIndex builds the username-enumeration collector.
func NewNameIndex(cfg ClientConfig) *NameIndex {
	return &NameIndex{cfg: cfg, client: cfg.httpClient()}
}

// Name implements collect.Collector.
func (n *NameIndex) Name() string { return SourceNameIndex }

// Submit implements collect.Collector.
func (n *NameIndex) Submit(ctx context.Context, q collect.Query) (evidence.Batch, *collect.Fault) {
	usernames := q.KnownUsernames
	if len(usernames) == 0 {
		// Fall back to email local parts; handles frequently match them.
		for _, email := range q.KnownEmails {
			if at := strings.Index(email, "@"); at > 0 {
				usernames = append(usernames, email[:at])
			}
		}
	}
	if len(usernames) == 0 {
		return nil, nil
	}

	req, err := newRequest(ctx, n.cfg, "/v1/enumerate", url.Values{
		"usernames": {strings.Join(usernames, ",")},
	})
	if err != nil {
		return nil, &collect.Fault{Kind: collect.FaultUnknown, Message: err.Error()}
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, faultFromErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, faultFromStatus(SourceNameIndex, resp.StatusCode)
	}

	var payload nameIndexResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, decodeFault(SourceNameIndex, err)
	}

	now := time.Now().UTC()
	var batch evidence.Batch
	for _, hit := range payload.Hits {
		if !hit.Exists || hit.Handle == "" {
			continue
		}
		batch = append(batch, evidence.Record{
			SourceID:    SourceNameIndex,
			Kind:        evidence.KindUsername,
			RawValue:    hit.Handle,
			Weight:      n.cfg.Weight,
			CollectedAt: now,
		})
	}
	return batch, nil
}
