// Package managedserver adapts a realm-scoped REST management backend to
// the remote.ResourceService boundary. All knowledge of the concrete wire
// format lives here, including the backend's literal capability-gap
// signature.
package managedserver

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/szylko/treeport/faults"
	"github.com/szylko/treeport/remote"
	"github.com/szylko/treeport/resource"
)

// The backend reports an operation its deployment variant lacks with this
// literal message in the error body. The adapter maps it to
// CapabilityGapError; nothing outside this package matches on the string.
const capabilityGapSignature = "not available in this deployment variant"

var _ remote.ResourceService = (*HTTPResourceService)(nil)

type HTTPResourceService struct {
	config      HTTPResourceServiceConfig
	credentials remote.CredentialProvider
	client      *http.Client
	baseURL     *url.URL
	limiter     *rate.Limiter
}

func NewHTTPResourceService(cfg HTTPResourceServiceConfig, credentials remote.CredentialProvider) (*HTTPResourceService, error) {
	rawBase := strings.TrimSpace(cfg.BaseURL)
	if rawBase == "" {
		return nil, faults.NewTypedError(faults.ValidationError, "resource service base URL is required", nil)
	}
	parsed, err := url.Parse(rawBase)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("invalid resource service base URL %q", rawBase),
			err,
		)
	}
	if strings.TrimSpace(cfg.Realm) == "" {
		return nil, faults.NewTypedError(faults.ValidationError, "resource service realm is required", nil)
	}
	if credentials == nil {
		return nil, faults.NewTypedError(faults.ValidationError, "resource service credential provider is required", nil)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	transport := http.DefaultTransport
	if cfg.InsecureSkipTLSVerify {
		cloned := http.DefaultTransport.(*http.Transport).Clone()
		cloned.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		transport = cloned
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &HTTPResourceService{
		config:      cfg,
		credentials: credentials,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		baseURL: parsed,
		limiter: limiter,
	}, nil
}

func (s *HTTPResourceService) Get(ctx context.Context, kind string, id string) (resource.Body, error) {
	data, err := s.do(ctx, http.MethodGet, s.resourcePath(kind, id), nil)
	if err != nil {
		return nil, err
	}
	return decodeBody(data)
}

func (s *HTTPResourceService) List(ctx context.Context, kind string) ([]string, error) {
	data, err := s.do(ctx, http.MethodGet, s.collectionPath(kind), nil)
	if err != nil {
		return nil, err
	}
	return decodeIDList(data)
}

func (s *HTTPResourceService) Put(ctx context.Context, kind string, id string, body resource.Body) error {
	_, err := s.do(ctx, http.MethodPut, s.resourcePath(kind, id), body)
	return err
}

func (s *HTTPResourceService) Delete(ctx context.Context, kind string, id string) error {
	_, err := s.do(ctx, http.MethodDelete, s.resourcePath(kind, id), nil)
	return err
}

func (s *HTTPResourceService) ListChildren(ctx context.Context, kind string, id string) ([]resource.Child, error) {
	data, err := s.do(ctx, http.MethodGet, s.childrenPath(kind, id), nil)
	if err != nil {
		return nil, err
	}
	return decodeChildList(data)
}

func (s *HTTPResourceService) PutChild(ctx context.Context, kind string, id string, child resource.Child) error {
	if child.Type == "" || child.ID == "" {
		return faults.NewTypedError(faults.ValidationError, "child type and id are required", nil)
	}
	_, err := s.do(ctx, http.MethodPut, s.childPath(kind, id, child.Type, child.ID), child.Body)
	return err
}

func (s *HTTPResourceService) DeleteChild(ctx context.Context, kind string, id string, childType string, childID string) error {
	_, err := s.do(ctx, http.MethodDelete, s.childPath(kind, id, childType, childID), nil)
	return err
}

// Path segments are joined unescaped; url.URL.JoinPath escapes each one.
func (s *HTTPResourceService) collectionPath(kind string) []string {
	return []string{"realms", s.config.Realm, kind}
}

func (s *HTTPResourceService) resourcePath(kind string, id string) []string {
	return append(s.collectionPath(kind), id)
}

func (s *HTTPResourceService) childrenPath(kind string, id string) []string {
	return append(s.resourcePath(kind, id), "children")
}

func (s *HTTPResourceService) childPath(kind string, id string, childType string, childID string) []string {
	return append(s.childrenPath(kind, id), childType, childID)
}

func (s *HTTPResourceService) do(ctx context.Context, method string, path []string, payload any) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, faults.NewTypedError(faults.TransportError, "request pacing interrupted", err)
		}
	}

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, faults.NewTypedError(faults.ValidationError, "encode request payload", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	endpoint := s.baseURL.JoinPath(path...)
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reqBody)
	if err != nil {
		return nil, faults.NewTypedError(faults.InternalError, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := s.credentials.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, faults.NewTypedError(
			faults.TransportError,
			fmt.Sprintf("%s %s", method, endpoint.Path),
			err,
		)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.NewTypedError(faults.TransportError, "read response body", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	return nil, statusError(method, endpoint.Path, resp.StatusCode, data)
}

// statusError maps a backend error response to the fault taxonomy.
func statusError(method string, path string, status int, body []byte) error {
	message := errorMessage(body)
	context := fmt.Sprintf("%s %s: %s", method, path, message)

	switch {
	case status == http.StatusNotFound:
		return faults.NewTypedError(faults.NotFoundError, context, nil)
	case status == http.StatusConflict:
		return faults.NewTypedError(faults.ConflictError, context, nil)
	case status == http.StatusUnauthorized:
		return faults.NewTypedError(faults.AuthError, context, nil)
	case status == http.StatusForbidden:
		if strings.Contains(message, capabilityGapSignature) {
			return faults.NewTypedError(faults.CapabilityGapError, context, nil)
		}
		return faults.NewTypedError(faults.AuthError, context, nil)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return faults.NewTypedError(faults.ValidationError, context, nil)
	default:
		return faults.NewTypedError(
			faults.TransportError,
			fmt.Sprintf("%s (status %d)", context, status),
			nil,
		)
	}
}

func errorMessage(body []byte) string {
	var structured struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &structured); err == nil {
		if structured.Error != "" {
			return structured.Error
		}
		if structured.Message != "" {
			return structured.Message
		}
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "request failed"
	}
	return trimmed
}

// decodeBody normalizes what it decoded so json.Number never leaves the
// adapter: body values compare and encode as int64/float64 everywhere else.
func decodeBody(data []byte) (resource.Body, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var body resource.Body
	if err := decoder.Decode(&body); err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "decode resource body", err)
	}
	return resource.NormalizeBody(body)
}

func decodeIDList(data []byte) ([]string, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw []any
	if err := decoder.Decode(&raw); err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "decode resource list", err)
	}

	ids := make([]string, 0, len(raw))
	for idx, item := range raw {
		switch typed := item.(type) {
		case string:
			ids = append(ids, typed)
		case map[string]any:
			id, _ := typed["id"].(string)
			if id == "" {
				return nil, faults.NewTypedError(
					faults.ValidationError,
					fmt.Sprintf("resource list item %d has no id", idx),
					nil,
				)
			}
			ids = append(ids, id)
		default:
			return nil, faults.NewTypedError(
				faults.ValidationError,
				fmt.Sprintf("resource list item %d has unsupported shape %T", idx, item),
				nil,
			)
		}
	}
	return ids, nil
}

func decodeChildList(data []byte) ([]resource.Child, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw []map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, faults.NewTypedError(faults.ValidationError, "decode child list", err)
	}

	children := make([]resource.Child, 0, len(raw))
	for idx, fields := range raw {
		childType, _ := fields["type"].(string)
		childID, _ := fields["id"].(string)
		if childType == "" || childID == "" {
			return nil, faults.NewTypedError(
				faults.ValidationError,
				fmt.Sprintf("child list item %d is missing type or id", idx),
				nil,
			)
		}
		body := make(resource.Body, len(fields))
		for key, value := range fields {
			if key == "type" || key == "id" {
				continue
			}
			body[key] = value
		}
		if len(body) == 0 {
			body = nil
		} else {
			normalized, err := resource.NormalizeBody(body)
			if err != nil {
				return nil, err
			}
			body = normalized
		}
		children = append(children, resource.Child{Type: childType, ID: childID, Body: body})
	}
	if len(children) == 0 {
		return nil, nil
	}
	return children, nil
}
