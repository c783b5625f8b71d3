package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func responseWith(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestParseResponseError_StripeShape(t *testing.T) {
	body := `{"error":{"type":"invalid_request_error","code":"parameter_missing","message":"Missing required param: currency."}}`

	err := ParseResponseError(responseWith(http.StatusBadRequest, body), "stripe")

	var de *DownstreamError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "stripe", de.Service)
	assert.Equal(t, http.StatusBadRequest, de.StatusCode)
	assert.Equal(t, "parameter_missing", de.Code)
	assert.Equal(t, "invalid_request_error", de.Type)
	assert.Equal(t, "Missing required param: currency.", de.Message)
	assert.False(t, de.Temporary())
	assert.Contains(t, err.Error(), "Missing required param")
}

func TestParseResponseError_UnstructuredBody(t *testing.T) {
	err := ParseResponseError(responseWith(http.StatusBadGateway, "<html>bad gateway</html>"), "stripe")

	var de *DownstreamError
	require.True(t, errors.As(err, &de))
	assert.Empty(t, de.Code)
	assert.Equal(t, "<html>bad gateway</html>", de.Body)
	assert.True(t, de.Temporary())
	assert.Contains(t, err.Error(), "status 502")
}

func TestParseResponseError_NullErrorObject(t *testing.T) {
	err := ParseResponseError(responseWith(http.StatusTooManyRequests, `{"error":null}`), "stripe")

	var de *DownstreamError
	require.True(t, errors.As(err, &de))
	assert.Empty(t, de.Message)
	assert.True(t, de.Temporary())
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(400))
	assert.True(t, IsClientError(499))
	assert.False(t, IsClientError(399))
	assert.False(t, IsClientError(500))
	assert.False(t, IsClientError(200))
}
