package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

var (
	// ErrNoSession is returned by operations that need a current session when
	// there is none.
	ErrNoSession = errors.New("backend: no session")

	// ErrSubjectMismatch is returned when the user reported for an access token
	// is not the subject of that token.
	ErrSubjectMismatch = errors.New("backend: user does not match token subject")

	// ErrIncompleteSession is returned when the auth API issues tokens that do
	// not form a complete session.
	ErrIncompleteSession = errors.New("backend: incomplete session")
)

// APIError is returned when the auth API responds with a non-2xx status. Message
// is suitable for showing to the user.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("backend: unexpected status %d", e.Status)
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	apiErr := &APIError{Status: resp.StatusCode}

	var v errorResponse
	if err := json.Unmarshal(body, &v); err == nil {
		apiErr.Code = firstOf(v.ErrorCode, v.Error)
		apiErr.Message = firstOf(v.ErrorDescription, v.Msg, v.Message, v.Error)
	}

	return apiErr
}

// translate converts errors from the oauth2 package into an APIError, so that
// callers only have one kind to check for.
func translate(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return err
	}

	apiErr := &APIError{
		Code:    retrieveErr.ErrorCode,
		Message: retrieveErr.ErrorDescription,
	}
	if retrieveErr.Response != nil {
		apiErr.Status = retrieveErr.Response.StatusCode
	}

	var v errorResponse
	if apiErr.Message == "" && json.Unmarshal(retrieveErr.Body, &v) == nil {
		apiErr.Code = firstOf(apiErr.Code, v.ErrorCode, v.Error)
		apiErr.Message = firstOf(v.ErrorDescription, v.Msg, v.Message, v.Error)
	}

	return apiErr
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
