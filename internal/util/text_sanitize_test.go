package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeText(t *testing.T) {
	cases := map[string]string{
		"ab\x00cd\x01\x02\n\txy":     "abcd\n\txy",
		"\ufeffRunbook\u200b steps":  "Runbook steps",
		"one\r\ntwo":                 "one\ntwo",
		"para one\n\n\n\n\npara two": "para one\n\npara two",
		"  keep \u00e9 and \u4e2d  ": "keep \u00e9 and \u4e2d",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeText(in), "%q", in)
	}
}
