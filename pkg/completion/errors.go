package completion

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPError is a non-2xx answer from the completion API.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("completion API returned HTTP %d (%s): %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("completion API returned HTTP %d: %s", e.StatusCode, msg)
}

// HTTPStatus returns the response status code.
func (e *HTTPError) HTTPStatus() int {
	return e.StatusCode
}

// newHTTPError reads an error body into an HTTPError.
func newHTTPError(resp *http.Response) *HTTPError {
	e := &HTTPError{StatusCode: resp.StatusCode}
	if resp.Body == nil {
		return e
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(data) == 0 {
		return e
	}

	var errResp ChatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		e.Message = errResp.Error.Message
		switch code := errResp.Error.Code.(type) {
		case string:
			e.Code = code
		case nil:
			e.Code = errResp.Error.Type
		default:
			e.Code = fmt.Sprint(code)
		}
		return e
	}
	e.Message = string(data)
	return e
}
