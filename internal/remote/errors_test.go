package remote

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyToolError(t *testing.T) {
	tests := []struct {
		text string
		want ErrorKind
	}{
		{"Error: 429 Too Many Requests", KindRateLimited},
		{"Error: rate limit exceeded, retry later", KindRateLimited},
		{"Error: 401 Unauthorized", KindAuth},
		{"Error: 403 Forbidden for this resource", KindAuth},
		{"Error: Issue PROJ-999 not found", KindNotFound},
		{"Error: HTTP 404", KindNotFound},
		{"Error: something exploded", KindProtocol},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyToolError(tt.text), "text %q", tt.text)
	}
}

func TestIsToolErrorText(t *testing.T) {
	assert.True(t, isToolErrorText("Error: boom"))
	assert.True(t, isToolErrorText("request error with status 503"))
	assert.False(t, isToolErrorText(`{"key":"PROJ-1"}`))
	assert.False(t, isToolErrorText("errors are discussed in this description"))
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&Error{Kind: KindRateLimited}))
	assert.True(t, IsRateLimited(fmt.Errorf("wrapped: %w", &Error{Kind: KindRateLimited})))
	assert.True(t, IsRateLimited(errors.New("upstream said rate limit hit")))
	assert.True(t, IsRateLimited(errors.New("got 429 from server")))
	assert.False(t, IsRateLimited(&Error{Kind: KindAuth, Message: "nope"}))
	assert.False(t, IsRateLimited(nil))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindAuth, KindOf(&Error{Kind: KindAuth}))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("x: %w", &Error{Kind: KindNotFound})))
	assert.Equal(t, KindTransport, KindOf(errors.New("plain")))
}

func TestErrorMessagePreservesOriginalText(t *testing.T) {
	err := &Error{Kind: KindAuth, Tool: "jira_search", Message: "Error: 401 Unauthorized"}
	assert.Contains(t, err.Error(), "jira_search")
	assert.Contains(t, err.Error(), "Error: 401 Unauthorized")
}
