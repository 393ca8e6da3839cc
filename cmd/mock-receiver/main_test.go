package main

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusCycleParsesCommaList(t *testing.T) {
	got, err := parseStatusCycle("500,500,200")
	require.NoError(t, err)
	assert.Equal(t, []int{500, 500, 200}, got)
}

func TestParseStatusCycleRejectsEmpty(t *testing.T) {
	_, err := parseStatusCycle("")
	assert.Error(t, err)
}

func TestCyclingHandlerRepeatsLastStatusAfterExhaustion(t *testing.T) {
	h := &cyclingHandler{statuses: []int{500, 200}}

	for i, want := range []int{500, 200, 200, 200} {
		req := httptest.NewRequest("POST", "/", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "call %d", i)
	}
}
