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

// SourceCodeSearch is the stable id of the code-hosting source.
const SourceCodeSearch = "codesearch"

// CodeSearch looks up commit authors and account profiles on a code
// hosting platform by discovered emails and usernames. Developers leak
// real names and alternate emails through commit metadata; the stage
// runs in both modes.
type CodeSearch struct {
	cfg    ClientConfig
	client *http.Client
}

type codeSearchResponse struct {
	Accounts []codeSearchAccount `json:"accounts"`
}

type codeSearchAccount struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
	CommitEmail string `json:"commit_email"`
}

// NewCodeSearch builds the code-hosting collector.
func NewCodeSearch(cfg ClientConfig) *CodeSearch {
	return &CodeSearch{cfg: cfg, client: cfg.httpClient()}
}

// Name implements collect.Collector.
func (c *CodeSearch) Name() string { return SourceCodeSearch }

// Submit implements collect.Collector.
func (c *CodeSearch) Submit(ctx context.Context, q collect.Query) (evidence.Batch, *collect.Fault) {
	params := url.Values{}
	for _, email := range q.KnownEmails {
		params.Add("email", email)
	}
	for _, username := range q.KnownUsernames {
		params.Add("login", username)
	}
	if len(params) == 0 {
		return nil, nil
	}

	req, err := newRequest(ctx, c.cfg, "/search/accounts", params)
	if err != nil {
		return nil, &collect.Fault{Kind: collect.FaultUnknown, Message: err.Error()}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, faultFromErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, faultFromStatus(SourceCodeSearch, resp.StatusCode)
	}

	var payload codeSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, decodeFault(SourceCodeSearch, err)
	}

	now := time.Now().UTC()
	var batch evidence.Batch
	for i, account := range payload.Accounts {
		group := fmt.Sprintf("%s:%s:%d", SourceCodeSearch, account.Login, i)
		add := func(kind evidence.Kind, value string) {
			if value == "" {
				return
			}
			batch = append(batch, evidence.Record{
				SourceID:    SourceCodeSearch,
				Kind:        kind,
				RawValue:    value,
				Weight:      c.cfg.Weight,
				CoGroup:     group,
				CollectedAt: now,
			})
		}
		add(evidence.KindUsername, account.Login)
		add(evidence.KindName, account.DisplayName)
		add(evidence.KindEmail, account.CommitEmail)
	}
	return batch, nil
}
