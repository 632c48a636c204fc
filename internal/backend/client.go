// Package backend talks to the La Serenissima game backend over its JSON REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/serenissima/contracts-gateway/internal/apperror"
)

type Client struct {
	baseURL string
	http    *http.Client
	schemas *schemas
	log     zerolog.Logger
}

// NewClient builds a client for baseURL. A zero timeout leaves requests bounded only by
// their context.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("backend base url is required")
	}
	compiled, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		schemas: compiled,
		log:     log.With().Str("component", "backend").Logger(),
	}, nil
}

type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, schema *jsonschema.Schema, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, schema, out)
}

func (c *Client) post(ctx context.Context, path string, body any, schema *jsonschema.Schema, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, schema, out)
}

func (c *Client) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	body any,
	schema *jsonschema.Schema,
	out any,
) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &apperror.APIError{
			ServiceError: apperror.ServiceError{Message: "request failed", Cause: err},
			Endpoint:     path,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperror.APIError{
			ServiceError: apperror.ServiceError{Message: "read response", Cause: err},
			Status:       resp.StatusCode,
			Endpoint:     path,
		}
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("backend call")

	var env envelope
	_ = json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, path, env.Error)
	}
	if env.Success != nil && !*env.Success {
		msg := env.Error
		if msg == "" {
			msg = "backend reported failure"
		}
		return apperror.NewAPIError(resp.StatusCode, path, msg)
	}

	if out == nil {
		return nil
	}
	return c.decode(path, raw, schema, out)
}

func (c *Client) decode(path string, raw []byte, schema *jsonschema.Schema, out any) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return apperror.NewDataFormatError(fmt.Sprintf("invalid json from %s", path), err)
	}
	if schema == nil {
		schema = c.schemas.envelope
	}
	if err := schema.Validate(doc); err != nil {
		return apperror.NewDataFormatError(fmt.Sprintf("unexpected response shape from %s", path), err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperror.NewDataFormatError(fmt.Sprintf("decode response from %s", path), err)
	}
	return nil
}

func statusError(status int, path, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	switch status {
	case http.StatusUnauthorized:
		return &apperror.AuthenticationError{
			ServiceError: apperror.ServiceError{Message: message, Cause: apperror.NewAPIError(status, path, message)},
		}
	case http.StatusForbidden:
		return &apperror.UnauthorizedActionError{
			ServiceError: apperror.ServiceError{Message: message, Cause: apperror.NewAPIError(status, path, message)},
			Action:       path,
		}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &apperror.ValidationError{
			ServiceError: apperror.ServiceError{Message: message, Cause: apperror.NewAPIError(status, path, message)},
		}
	default:
		return apperror.NewAPIError(status, path, message)
	}
}

// notFoundAs converts an upstream 404 into a typed NotFoundError and passes other errors
// through.
func notFoundAs(err error, resourceType, id string) error {
	if err == nil {
		return nil
	}
	if apperror.IsNotFoundStatus(err) {
		return apperror.NewNotFoundError(resourceType, id)
	}
	return err
}

func escape(field, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", apperror.NewValidationError(field, "is required")
	}
	return url.PathEscape(id), nil
}
