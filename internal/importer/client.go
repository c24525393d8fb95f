package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// HTTPClient fetches survey responses from the upstream survey platform's
// REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient builds a client for the survey API at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// responsePage mirrors the upstream API's paginated payload.
type responsePage struct {
	Responses []struct {
		ResponseID  string         `json:"response_id"`
		Answers     map[string]any `json:"answers"`
		SubmittedAt time.Time      `json:"submitted_at"`
	} `json:"responses"`
	HasMore bool `json:"has_more"`
}

func (c *HTTPClient) FetchResponses(ctx context.Context, surveyID id.SurveyID, page int) ([]SurveyResponse, bool, error) {
	endpoint := fmt.Sprintf("%s/surveys/%s/responses?page=%d",
		c.baseURL, url.PathEscape(string(surveyID)), page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeUnavailable, "survey API unreachable")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, false, dErrors.Newf(dErrors.CodeNotFound, "survey %q not found upstream", surveyID)
	default:
		return nil, false, dErrors.Newf(dErrors.CodeUnavailable, "survey API returned %d", resp.StatusCode)
	}

	var body responsePage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeUnavailable, "malformed survey API payload")
	}

	out := make([]SurveyResponse, 0, len(body.Responses))
	for _, r := range body.Responses {
		out = append(out, SurveyResponse{
			ResponseID:  id.ResponseID(r.ResponseID),
			Answers:     r.Answers,
			SubmittedAt: r.SubmittedAt,
		})
	}
	return out, body.HasMore, nil
}
