package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand_ValidFile(t *testing.T) {
	path := filepath.Join(scenariosDir, "concurrent_inserts.yaml")
	out, err := executeRoot(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+path)
	assert.Contains(t, out, "1 scenario(s) valid")
}

func TestValidateCommand_Directory(t *testing.T) {
	out, err := executeRoot(t, "validate", scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "7 scenario(s) valid")
}

func TestValidateCommand_Invalid(t *testing.T) {
	out, err := executeRoot(t, "validate", "../harness/testdata/invalid")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ ")
	assert.Contains(t, out, "schema: ")
	assert.Contains(t, out, "invalid scenario")
}

func TestValidateCommand_JSON(t *testing.T) {
	out, err := executeRoot(t, "--format", "json", "validate", "../harness/testdata/invalid/bad_code.yaml")
	require.Error(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeInvalid, resp.Error.Code)

	files := resp.Data.(map[string]any)["files"].([]any)
	require.Len(t, files, 1)
	file := files[0].(map[string]any)
	assert.Equal(t, false, file["valid"])
	// Only the schema knows the error code set.
	errs := file["errors"].([]any)
	require.NotEmpty(t, errs)
	for _, e := range errs {
		assert.Contains(t, e, "schema: ")
	}
}

func TestValidateCommand_MissingPath(t *testing.T) {
	_, err := executeRoot(t, "validate", "/nonexistent.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateFile_ReportsBothLayers(t *testing.T) {
	fv := validateFile("../harness/testdata/invalid/bad_step.yaml")
	assert.False(t, fv.Valid)
	assert.GreaterOrEqual(t, len(fv.Errors), 2)
}
