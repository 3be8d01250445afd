package main

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/interaction-tracker/pkg/util"
)

func TestPromptCredentials(t *testing.T) {
	var out bytes.Buffer
	in := bufio.NewReader(strings.NewReader(" chief \nsecret\nsecret"))

	creds, err := promptCredentials(in, &out, readLine)
	require.NoError(t, err)
	assert.Equal(t, "chief", creds.Username)
	assert.Equal(t, "secret", creds.Password)
	assert.Contains(t, out.String(), "Confirm password: ")
}

func TestPromptCredentialsRejectsMismatch(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("chief\none\ntwo\n"))
	_, err := promptCredentials(in, &bytes.Buffer{}, readLine)
	assert.EqualError(t, err, "passwords do not match")

	in = bufio.NewReader(strings.NewReader("\n"))
	_, err = promptCredentials(in, &bytes.Buffer{}, readLine)
	assert.EqualError(t, err, "username cannot be empty")
}

func TestDescribeFlattensDetails(t *testing.T) {
	err := describe(apperrors.NewFieldError("username", "username already in use"))
	assert.EqualError(t, err, "validation failed; username: username already in use")
}
