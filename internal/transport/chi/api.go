package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/dealscout/internal/domain"
	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
)

// maxBodyBytes caps the criteria payload.
const maxBodyBytes = 64 << 10

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FindCandidatesParams are the query parameters of POST /api/v1/rollups/candidates.
type FindCandidatesParams struct {
	K       *int  `form:"k,omitempty" json:"k,omitempty"`
	Summary *bool `form:"summary,omitempty" json:"summary,omitempty"`
}

// CandidatesResponse is the body of a successful rollup search.
type CandidatesResponse struct {
	Candidates []candidate.Result `json:"candidates"`
	Summary    string             `json:"summary,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// bindFindCandidatesParams binds query parameters the way oapi-codegen generated wrappers do.
func bindFindCandidatesParams(r *http.Request) (FindCandidatesParams, error) {
	var params FindCandidatesParams
	q := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, false, "k", q, &params.K); err != nil {
		return params, domain.NewValidationError("k", "must be an integer")
	}
	if err := runtime.BindQueryParameter("form", true, false, "summary", q, &params.Summary); err != nil {
		return params, domain.NewValidationError("summary", "must be a boolean")
	}
	if params.K != nil && *params.K < 0 {
		return params, domain.NewValidationError("k", "must not be negative")
	}
	return params, nil
}

// decodeCriteria reads the request body. An empty body means empty criteria.
func decodeCriteria(r *http.Request) (candidate.Criteria, error) {
	var c candidate.Criteria
	if r.Body == nil {
		return c, nil
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return candidate.Criteria{}, nil
		}
		return candidate.Criteria{}, decodeError(err)
	}
	if dec.More() {
		return candidate.Criteria{}, domain.NewValidationError("body", "must contain a single JSON object")
	}
	return c, nil
}

// decodeError turns a json decoding failure into a validation error that names the field.
func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return domain.NewValidationError(typeErr.Field, fmt.Sprintf("must be of type %s", typeErr.Type))
	}

	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return domain.NewValidationError(strings.Trim(name, `"`), "unknown field")
	}
	return domain.NewValidationError("body", "malformed JSON")
}
