package verify

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/veriface/platform/internal/errors"
	"github.com/veriface/platform/internal/face"
	"github.com/veriface/platform/internal/resilience"
)

// HTTPConfig holds settings for the HTTP verification client.
type HTTPConfig struct {
	BaseURL string
	Timeout time.Duration // per-call deadline; 0 disables
	Retries int           // transport-failure retries; 0 disables
}

// HTTPClient talks to the verification backend over JSON. A circuit breaker
// fails fast when the backend is down so the pipeline gate is not held for a
// full connection timeout on every frame.
type HTTPClient struct {
	httpClient *http.Client
	cfg        HTTPConfig
	breaker    *resilience.Breaker
}

// NewHTTPClient creates a client for the backend at cfg.BaseURL.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{},
		cfg:        cfg,
		breaker:    resilience.NewBreaker(resilience.VerifyConfig()),
	}
}

type verifyRequest struct {
	RequestID  string    `json:"request_id"`
	EmployeeID string    `json:"employee_id"`
	Embedding  []float32 `json:"embedding"`
}

type verifyResponse struct {
	Verified     bool    `json:"verified"`
	EmployeeName string  `json:"employee_name"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason,omitempty"`
}

// Verify posts the embedding to the backend and maps every failure mode
// onto the typed taxonomy.
func (c *HTTPClient) Verify(ctx context.Context, employeeID string, emb face.Embedding) (Match, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	var match Match
	call := func() error {
		if err := c.breaker.Allow(); err != nil {
			return err
		}
		m, err := c.verifyOnce(ctx, employeeID, emb)
		if err != nil {
			// Only transport-class failures count against the breaker;
			// a rejection from a healthy backend is not an outage.
			if errors.IsRetryable(err) {
				c.breaker.Failure()
			} else {
				c.breaker.Success()
			}
			return err
		}
		c.breaker.Success()
		match = m
		return nil
	}

	var err error
	if c.cfg.Retries > 0 {
		retryCfg := resilience.DefaultRetryConfig()
		retryCfg.MaxRetries = c.cfg.Retries
		err = resilience.Retry(ctx, retryCfg, call)
	} else {
		err = call()
	}

	if stderrors.Is(err, resilience.ErrOpen) {
		return Match{}, errors.Wrap(err, errors.CodeUnavailable, "verification backend circuit open")
	}
	if err != nil {
		return Match{}, err
	}
	return match, nil
}

func (c *HTTPClient) verifyOnce(ctx context.Context, employeeID string, emb face.Embedding) (Match, error) {
	requestID := uuid.NewString()
	body, err := json.Marshal(verifyRequest{
		RequestID:  requestID,
		EmployeeID: employeeID,
		Embedding:  emb.Values,
	})
	if err != nil {
		return Match{}, errors.Wrap(err, errors.CodeUnknown, "encode verify request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/verify", bytes.NewReader(body))
	if err != nil {
		return Match{}, errors.Wrap(err, errors.CodeUnknown, "build verify request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Match{}, transportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Match{}, errors.Newf(errors.CodeNotFound, "employee %s not found", employeeID)
	case resp.StatusCode >= 500:
		return Match{}, errors.Newf(errors.CodeUnavailable, "backend returned %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return Match{}, errors.Newf(errors.CodeUnknown, "backend returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Match{}, transportError(err)
	}

	var vr verifyResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return Match{}, errors.Wrap(err, errors.CodeMalformedResponse, "decode verify response")
	}

	if !vr.Verified {
		switch vr.Reason {
		case "not_found":
			return Match{}, errors.Newf(errors.CodeNotFound, "employee %s not found", employeeID)
		case "low_confidence", "":
			return Match{}, errors.Newf(errors.CodeLowConfidence,
				"confidence %.3f below backend threshold", vr.Confidence)
		default:
			return Match{}, errors.Newf(errors.CodeUnknown, "verification rejected: %s", vr.Reason)
		}
	}
	if vr.EmployeeName == "" {
		return Match{}, errors.New(errors.CodeMalformedResponse, "verified response missing employee name")
	}

	return Match{
		EmployeeID:   employeeID,
		EmployeeName: vr.EmployeeName,
		Confidence:   vr.Confidence,
	}, nil
}

// transportError classifies connection-level failures.
func transportError(err error) error {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.CodeTimeout, "verify request timed out")
	case stderrors.Is(err, context.Canceled):
		return errors.Wrap(err, errors.CodeCancelled, "verify request cancelled")
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrap(err, errors.CodeTimeout, "verify request timed out")
	}
	return errors.Wrap(err, errors.CodeUnavailable, "verification backend unreachable")
}
