// Package external implements blocks that reach outside the process:
// retrying HTTP calls, outbound notifications, and manifest signing.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/keiri-audit/engine/internal/blockerr"
)

// RetryConfig bounds how many times a failed call is retried and how long
// to wait between attempts.
type RetryConfig struct {
	MaxRetries int `json:"max_retries"`
	BackoffMs  int `json:"backoff_ms"`
}

// HTTPRequest is the input to Call.
type HTTPRequest struct {
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers"`
	Params     map[string]string `json:"params"`
	Body       any               `json:"body"`
	TimeoutSec float64           `json:"timeout_sec"`
	Retry      RetryConfig       `json:"retry"`
}

// HTTPResponse is the output of Call.
type HTTPResponse struct {
	Status       int            `json:"status"`
	ResponseJSON any            `json:"response_json"`
	ResponseText string         `json:"response_text"`
	Headers      map[string]string `json:"headers"`
	Summary      struct {
		OK        bool `json:"ok"`
		ElapsedMs int  `json:"elapsed_ms"`
	} `json:"summary"`
}

// Call issues an HTTP request, retrying up to req.Retry.MaxRetries times
// on timeout or transport failure with a fixed backoff between attempts.
// The final failure is classified as EXTERNAL_TIMEOUT or EXTERNAL_API_ERROR
// depending on whether it was a deadline exceeded.
func Call(ctx context.Context, req HTTPRequest) (HTTPResponse, error) {
	if req.URL == "" {
		return HTTPResponse{}, blockerr.NewInputError("url", "non-empty string", req.URL)
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = "GET"
	}
	timeout := req.TimeoutSec
	if timeout <= 0 {
		timeout = 30
	}
	client := &http.Client{Timeout: time.Duration(timeout * float64(time.Second))}

	reqURL := req.URL
	if len(req.Params) > 0 {
		q := url.Values{}
		for k, v := range req.Params {
			q.Set(k, v)
		}
		sep := "?"
		if strings.Contains(reqURL, "?") {
			sep = "&"
		}
		reqURL = reqURL + sep + q.Encode()
	}

	var bodyBytes []byte
	if req.Body != nil {
		switch b := req.Body.(type) {
		case string:
			bodyBytes = []byte(b)
		case []byte:
			bodyBytes = b
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				return HTTPResponse{}, blockerr.NewInputError("body", "JSON-serializable value", req.Body)
			}
			bodyBytes = encoded
		}
	}

	var lastErr error
	for attempt := 0; attempt <= req.Retry.MaxRetries; attempt++ {
		start := time.Now()
		httpReq, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(bodyBytes))
		if err != nil {
			return HTTPResponse{}, blockerr.Wrap(err, blockerr.ExternalAPIError, nil)
		}
		for k, v := range req.Headers {
			httpReq.Header.Set(k, v)
		}
		switch req.Body.(type) {
		case map[string]any, []any:
			httpReq.Header.Set("Content-Type", "application/json")
		}

		resp, doErr := client.Do(httpReq)
		if doErr != nil {
			lastErr = doErr
			if attempt < req.Retry.MaxRetries {
				sleep(req.Retry.BackoffMs)
				continue
			}
			timeout := errors.Is(doErr, context.DeadlineExceeded)
			var netErr interface{ Timeout() bool }
			if errors.As(doErr, &netErr) {
				timeout = timeout || netErr.Timeout()
			}
			return HTTPResponse{}, blockerr.NewExternalError(timeout, reqURL, doErr)
		}

		elapsed := time.Since(start)
		defer resp.Body.Close()
		text, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			lastErr = readErr
			if attempt < req.Retry.MaxRetries {
				sleep(req.Retry.BackoffMs)
				continue
			}
			return HTTPResponse{}, blockerr.NewExternalError(false, reqURL, readErr)
		}

		var js any
		_ = json.Unmarshal(text, &js)

		headers := map[string]string{}
		for k := range resp.Header {
			headers[k] = resp.Header.Get(k)
		}

		out := HTTPResponse{
			Status:       resp.StatusCode,
			ResponseJSON: js,
			ResponseText: string(text),
			Headers:      headers,
		}
		out.Summary.OK = resp.StatusCode >= 200 && resp.StatusCode < 300
		out.Summary.ElapsedMs = int(elapsed.Milliseconds())
		return out, nil
	}

	return HTTPResponse{}, blockerr.NewExternalError(false, reqURL, lastErr)
}

func sleep(ms int) {
	if ms <= 0 {
		return
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
}
