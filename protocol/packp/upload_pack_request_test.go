package packp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUploadPackRequestIsEmpty(t *testing.T) {
	r := NewUploadPackRequest()
	r.Wants = append(r.Wants, mustID(t, "1111111111111111111111111111111111111111"))
	r.Haves = append(r.Haves, mustID(t, "1111111111111111111111111111111111111111"))

	assert.True(t, r.IsEmpty())
}

func TestUploadPackRequestNotEmpty(t *testing.T) {
	r := NewUploadPackRequest()
	r.Wants = append(r.Wants, mustID(t, "1111111111111111111111111111111111111111"))
	r.Haves = append(r.Haves, mustID(t, "2222222222222222222222222222222222222222"))

	assert.False(t, r.IsEmpty())
}
