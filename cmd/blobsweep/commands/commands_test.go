package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/blobsweep/internal/cli/output"
	"github.com/marmos91/blobsweep/pkg/api/auth"
	"github.com/marmos91/blobsweep/pkg/gc"
	"github.com/marmos91/blobsweep/pkg/reference"
	refbadger "github.com/marmos91/blobsweep/pkg/reference/badger"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile, logLevel = "", ""
	runDryRun, runScopes, runOutput, runFailOnPartial = false, nil, "table", false
	forgetScope, forgetRecord, forgetForce = "", "", false
	tokenSubject, tokenTTL = "operator", 0
	versionShort = false

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

type fixture struct {
	dir        string
	configPath string
	objectsDir string
	refsDir    string
}

// newFixture seeds a badger reference store and a filesystem object store:
// u1 and u2 each have one live object and one orphan.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	f := &fixture{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		objectsDir: filepath.Join(dir, "objects"),
		refsDir:    filepath.Join(dir, "refs"),
	}

	refs, err := refbadger.New(refbadger.Config{Path: f.refsDir})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, refs.PutRecord(ctx, reference.Record{ID: "1", Scope: "u1", ObjectKey: "imgs/u1/live.png"}))
	require.NoError(t, refs.PutRecord(ctx, reference.Record{ID: "2", Scope: "u2", ObjectKey: "imgs/u2/live.png"}))
	require.NoError(t, refs.Close())

	for _, key := range []string{"imgs/u1/live.png", "imgs/u1/orphan.png", "imgs/u2/live.png", "imgs/u2/orphan.png"} {
		f.writeObject(t, key)
	}

	cfg := fmt.Sprintf(`logging:
  level: ERROR
  output: stderr
gc:
  namespace: imgs
  grace_period: 0s
references:
  type: badger
  badger:
    path: %s
objects:
  type: fs
  fs:
    path: %s
`, f.refsDir, f.objectsDir)
	require.NoError(t, os.WriteFile(f.configPath, []byte(cfg), 0600))
	return f
}

func (f *fixture) writeObject(t *testing.T, key string) {
	t.Helper()
	path := filepath.Join(f.objectsDir, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("png"), 0644))
}

func (f *fixture) exists(key string) bool {
	_, err := os.Stat(filepath.Join(f.objectsDir, filepath.FromSlash(key)))
	return err == nil
}

func decodeResult(t *testing.T, out string) gc.PassResult {
	t.Helper()
	var res gc.PassResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	return res
}

func TestRunDeletesOrphans(t *testing.T) {
	f := newFixture(t)

	out, err := executeCommand(t, "run", "--config", f.configPath, "--output", "json")
	require.NoError(t, err)

	res := decodeResult(t, out)
	assert.Equal(t, TriggerCLI, res.Trigger)
	assert.Equal(t, 2, res.ScopesProcessed)
	assert.EqualValues(t, 2, res.TotalOrphans)
	assert.EqualValues(t, 2, res.TotalDeleted)
	assert.EqualValues(t, 6, res.BytesReclaimed)

	assert.True(t, f.exists("imgs/u1/live.png"))
	assert.True(t, f.exists("imgs/u2/live.png"))
	assert.False(t, f.exists("imgs/u1/orphan.png"))
	assert.False(t, f.exists("imgs/u2/orphan.png"))
}

func TestRunDryRun(t *testing.T) {
	f := newFixture(t)

	out, err := executeCommand(t, "run", "--config", f.configPath, "--dry-run", "-o", "json")
	require.NoError(t, err)

	res := decodeResult(t, out)
	assert.True(t, res.DryRun)
	assert.EqualValues(t, 2, res.TotalOrphans)
	assert.Zero(t, res.TotalAttempted)
	assert.Zero(t, res.TotalDeleted)
	assert.True(t, f.exists("imgs/u1/orphan.png"))
	assert.True(t, f.exists("imgs/u2/orphan.png"))
}

func TestRunScopeFilter(t *testing.T) {
	f := newFixture(t)

	out, err := executeCommand(t, "run", "--config", f.configPath, "--scope", "u2", "-o", "json")
	require.NoError(t, err)

	res := decodeResult(t, out)
	require.Len(t, res.Scopes, 1)
	assert.Equal(t, reference.Scope("u2"), res.Scopes[0].Scope)
	assert.True(t, f.exists("imgs/u1/orphan.png"))
	assert.False(t, f.exists("imgs/u2/orphan.png"))
}

func TestRunTableOutput(t *testing.T) {
	f := newFixture(t)

	out, err := executeCommand(t, "run", "--config", f.configPath, "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, out, "Pass")
	assert.Contains(t, out, "dry run")
	assert.Contains(t, out, "SCOPE")
	assert.Contains(t, out, "ORPHANS")
	assert.Contains(t, out, "u1")
	assert.Contains(t, out, "u2")
}

func TestRunRejectsUnknownOutput(t *testing.T) {
	f := newFixture(t)

	_, err := executeCommand(t, "run", "--config", f.configPath, "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestRunMissingConfigFile(t *testing.T) {
	_, err := executeCommand(t, "run", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestReportPassExitCodes(t *testing.T) {
	ok := &gc.PassResult{ID: "p1", ScopeErrors: map[reference.Scope]error{}}
	partial := &gc.PassResult{ID: "p2", TotalFailed: 1, ScopeErrors: map[reference.Scope]error{}}
	aborted := &gc.PassResult{ID: "p3", Aborted: true, ScopeErrors: map[reference.Scope]error{}}
	abortErr := &gc.PassAbortedError{Reason: "list scopes", Err: errors.New("connection refused")}

	tests := []struct {
		name          string
		result        *gc.PassResult
		runErr        error
		failOnPartial bool
		wantCode      int
	}{
		{name: "clean pass", result: ok},
		{name: "partial without flag", result: partial},
		{name: "partial with flag", result: partial, failOnPartial: true, wantCode: 2},
		{name: "clean with flag", result: ok, failOnPartial: true},
		{name: "aborted", result: aborted, runErr: abortErr, wantCode: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := reportPass(&buf, output.FormatJSON, tt.result, tt.runErr, tt.failOnPartial)

			if tt.wantCode == 0 {
				require.NoError(t, err)
			} else {
				var exitErr *ExitError
				require.ErrorAs(t, err, &exitErr)
				assert.Equal(t, tt.wantCode, exitErr.Code)
			}
			// The report is printed even when the pass failed.
			assert.Contains(t, buf.String(), tt.result.ID)
		})
	}
}

func TestPassReportRows(t *testing.T) {
	res := &gc.PassResult{
		ID:     "p1",
		DryRun: true,
		Scopes: []gc.ScopeResult{
			{Scope: "u1", LiveKeys: 2, Listed: 5, Report: gc.DeletionReport{Orphans: 3, Deleted: 3, BytesReclaimed: 2048}},
			{Scope: "u2", Report: gc.DeletionReport{Orphans: 2, Deleted: 1, Failed: 1}},
			{Scope: "u3", Error: "object store unavailable", Err: errors.New("object store unavailable")},
		},
		ScopeErrors: map[reference.Scope]error{"u3": errors.New("object store unavailable")},
	}
	report := passReport{result: res}

	rows := report.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"u1", "2", "5", "3", "0", "3", "0", "0", "2.00KiB", "ok"}, rows[0])
	assert.Equal(t, "partial", rows[1][9])
	assert.Equal(t, "error: object store unavailable", rows[2][9])
	assert.Len(t, report.Headers(), len(rows[0]))

	summary := map[string]string{}
	for _, kv := range report.Summary() {
		summary[kv[0]] = kv[1]
	}
	assert.Equal(t, "dry run", summary["Mode"])
	assert.Equal(t, "1", summary["Scope errors"])
}

func TestPassReportYAMLUsesJSONNames(t *testing.T) {
	var buf bytes.Buffer
	res := &gc.PassResult{ID: "p1", TotalDeleted: 4}
	require.NoError(t, output.PrintYAML(&buf, passReport{result: res}))
	assert.Contains(t, buf.String(), "total_deleted: 4")
	assert.Contains(t, buf.String(), "id: p1")
}

func TestForgetObject(t *testing.T) {
	f := newFixture(t)

	out, err := executeCommand(t, "forget", "imgs/u1/orphan.png", "--force", "--config", f.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted imgs/u1/orphan.png")
	assert.False(t, f.exists("imgs/u1/orphan.png"))

	// Already gone is not an error.
	_, err = executeCommand(t, "forget", "imgs/u1/orphan.png", "--force", "--config", f.configPath)
	require.NoError(t, err)
}

func TestForgetRecord(t *testing.T) {
	f := newFixture(t)

	out, err := executeCommand(t, "forget", "--scope", "u1", "--record", "1", "--force", "--config", f.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed record u1/1 and deleted imgs/u1/live.png")
	assert.False(t, f.exists("imgs/u1/live.png"))

	_, err = executeCommand(t, "forget", "--scope", "u1", "--record", "1", "--force", "--config", f.configPath)
	require.Error(t, err)
}

func TestForgetObjectStillReferenced(t *testing.T) {
	f := newFixture(t)

	_, err := executeCommand(t, "forget", "imgs/u1/live.png", "--force", "--config", f.configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still referenced")
	assert.True(t, f.exists("imgs/u1/live.png"))
}

func TestForgetRecordKeepsSharedObject(t *testing.T) {
	f := newFixture(t)

	refs, err := refbadger.New(refbadger.Config{Path: f.refsDir})
	require.NoError(t, err)
	require.NoError(t, refs.PutRecord(context.Background(), reference.Record{ID: "3", Scope: "u1", ObjectKey: "imgs/u1/live.png"}))
	require.NoError(t, refs.Close())

	out, err := executeCommand(t, "forget", "--scope", "u1", "--record", "1", "--force", "--config", f.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "still referenced and was kept")
	assert.True(t, f.exists("imgs/u1/live.png"))

	out, err = executeCommand(t, "forget", "--scope", "u1", "--record", "3", "--force", "--config", f.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted imgs/u1/live.png")
	assert.False(t, f.exists("imgs/u1/live.png"))
}

func TestForgetArgumentValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "nothing", args: []string{"forget"}, want: "is required"},
		{name: "scope only", args: []string{"forget", "--scope", "u1"}, want: "must be set together"},
		{name: "key and record", args: []string{"forget", "k", "--scope", "u1", "--record", "1"}, want: "not both"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTokenSignsWithConfiguredSecret(t *testing.T) {
	f := newFixture(t)
	secret := strings.Repeat("k", auth.MinSecretLength)

	cfg, err := os.ReadFile(f.configPath)
	require.NoError(t, err)
	cfg = append(cfg, []byte("api:\n  jwt_secret: "+secret+"\n")...)
	require.NoError(t, os.WriteFile(f.configPath, cfg, 0600))

	out, err := executeCommand(t, "token", "--subject", "ci", "--ttl", "15m", "--config", f.configPath)
	require.NoError(t, err)

	token := strings.SplitN(out, "\n", 2)[0]
	svc, err := auth.NewJWTService(auth.JWTConfig{Secret: secret})
	require.NoError(t, err)
	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ci", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, time.Minute)
}

func TestTokenWithoutSecret(t *testing.T) {
	f := newFixture(t)

	_, err := executeCommand(t, "token", "--config", f.configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.jwt_secret")
}

func TestMigrateWithoutSchema(t *testing.T) {
	f := newFixture(t)

	out, err := executeCommand(t, "migrate", "--config", f.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, `"badger" has no schema to migrate`)
}

func TestVersion(t *testing.T) {
	out, err := executeCommand(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)

	out, err = executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "blobsweep "+Version)
	assert.Contains(t, out, "Go version")
}

func TestConfigSubcommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobsweep.yaml")

	out, err := executeCommand(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file created at: "+path)
	assert.FileExists(t, path)

	out, err = executeCommand(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation: OK")
	assert.Contains(t, out, "references.type is memory")

	out, err = executeCommand(t, "config", "show", "--config", path, "--output", "json")
	require.NoError(t, err)
	var shown map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Contains(t, shown, "gc")
	assert.Contains(t, shown, "schedule")

	out, err = executeCommand(t, "config", "schema")
	require.NoError(t, err)
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Contains(t, schema, "properties")
}
