package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDay_UsesReportingTimezone(t *testing.T) {
	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	day, err := parseDay("2017-09-02", saoPaulo)
	require.NoError(t, err)

	// The flag names a calendar day in the reporting timezone, so the parsed
	// instant must be that day's local midnight, not UTC midnight shifted
	// onto the prior day.
	assert.Equal(t, time.Date(2017, time.September, 2, 0, 0, 0, 0, saoPaulo), day)
	assert.Equal(t, "2017-09-02", day.Format("2006-01-02"))
}

func TestParseDay_RejectsMalformedInput(t *testing.T) {
	for _, input := range []string{"", "02-09-2017", "2017/09/02", "yesterday"} {
		_, err := parseDay(input, time.UTC)
		assert.Error(t, err, "input %q", input)
	}
}
