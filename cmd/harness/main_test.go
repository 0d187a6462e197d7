package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) []byte {
	t.Helper()
	t.Setenv("NEXT_PUBLIC_SUPABASE_URL", "")
	t.Setenv("NEXT_PUBLIC_SUPABASE_PUBLISHABLE_KEY", "")
	t.Setenv("DATABASE_URL", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--mock", "--config-dir", t.TempDir()}, args...))
	require.NoError(t, rootCmd.Execute())
	return out.Bytes()
}

func TestLookupTypesCommand(t *testing.T) {
	var types []map[string]interface{}
	require.NoError(t, json.Unmarshal(execute(t, "lookups", "types"), &types))
	assert.Len(t, types, 3)
}

func TestListPatientsCommand(t *testing.T) {
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(execute(t, "patients", "list", "--search", "John"), &result))
	assert.Equal(t, float64(1), result["count"])
}

func TestCreateAndGetInSeparateRuns(t *testing.T) {
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(execute(t, "therapists", "create", "--data", `{"first_name":"Sam","last_name":"Cruz"}`), &created))
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	// A new run starts with an empty ledger.
	assert.Equal(t, "null", string(bytes.TrimSpace(execute(t, "therapists", "get", id))))
}

func TestDeleteMissingReportCommand(t *testing.T) {
	assert.Equal(t, "false", string(bytes.TrimSpace(execute(t, "reports", "delete", "missing"))))
}
