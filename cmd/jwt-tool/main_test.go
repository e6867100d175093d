package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnexpectedArg(t *testing.T) {
	out := bytes.NewBuffer([]byte{})
	errout := bytes.NewBuffer([]byte{})
	rc := 0
	exit := func(c int) {
		rc = c
	}

	realMain([]string{"jwt-tool", "version"}, out, errout, exit)
	assert.Equal(t, 1, rc)
	assert.Equal(t, "jwt-tool: error: unexpected argument version\n", errout.String())
	assert.Empty(t, out.String())
}

func TestSign(t *testing.T) {
	out := bytes.NewBuffer([]byte{})
	errout := bytes.NewBuffer([]byte{})
	rc := 0
	exit := func(c int) {
		rc = c
	}

	realMain([]string{"jwt-tool", "sign", "--secret", "secret", "--sub", "bob", "--no-id", "--no-iat"}, out, errout, exit)
	assert.Equal(t, 0, rc)
	assert.Empty(t, errout.String())
	assert.True(t, strings.HasPrefix(out.String(), "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJzdWIiOiJib2IifQ."))
}
