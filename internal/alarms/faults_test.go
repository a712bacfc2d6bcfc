package alarms

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaultNames_Name(t *testing.T) {
	names := DefaultFaultNames()

	assert.Equal(t, "Card Offline", names.Name("400123"))
	assert.Equal(t, "Card Offline", names.Name("400123.0"))
	assert.Equal(t, "[GPON Alarm] ONU LOS (Loss of Signal)", names.Name("722445000"))
	assert.Equal(t, "", names.Name("42"))
	assert.Equal(t, "", names.Name("Card"))
}

func TestLoadFaultNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faults.yml")
	content := `
faults:
  - code: 1014
    name: NE link broken
  - code: "5001.0"
    name: Power failure
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	names, err := LoadFaultNames(path)
	require.NoError(t, err)

	assert.Equal(t, "NE link broken", names.Name("1014"))
	assert.Equal(t, "Power failure", names.Name("5001"))
	assert.Equal(t, "Card Offline", names.Name("400123"), "defaults stay in place")
}

func TestLoadFaultNames_EmptyPath(t *testing.T) {
	names, err := LoadFaultNames("")
	require.NoError(t, err)
	assert.Equal(t, DefaultFaultNames(), names)
}

func TestLoadFaultNames_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFaultNames(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("faults: [\n"), 0644))
	_, err = LoadFaultNames(bad)
	assert.Error(t, err)

	noCode := filepath.Join(dir, "nocode.yml")
	require.NoError(t, os.WriteFile(noCode, []byte("faults:\n  - name: x\n"), 0644))
	_, err = LoadFaultNames(noCode)
	assert.Error(t, err)
}
