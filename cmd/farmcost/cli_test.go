package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperengineering/farmcost/internal/snapshot"
	"github.com/hyperengineering/farmcost/internal/store"
	"github.com/hyperengineering/farmcost/internal/types"
)

// cliEnv isolates a command run: a temp database and backup directory, no
// config file and a fast bcrypt cost.
type cliEnv struct {
	t         *testing.T
	dbPath    string
	backupDir string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()

	for _, k := range []string{
		"FARMCOST_DEV_MODE",
		"FARMCOST_DB_DRIVER",
		"FARMCOST_DB_DSN",
		"FARMCOST_DB_PATH",
		"FARMCOST_ADMIN_USERNAME",
		"FARMCOST_ADMIN_PASSWORD",
		"FARMCOST_SESSION_BACKEND",
		"FARMCOST_BACKUP_BUCKET",
		"FARMCOST_S3_ENDPOINT",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("FARMCOST_CONFIG_PATH", filepath.Join(dir, "missing.yaml"))
	t.Setenv("FARMCOST_BCRYPT_COST", "4")
	t.Setenv("FARMCOST_BACKUP_DIR", filepath.Join(dir, "backups"))

	return &cliEnv{
		t:         t,
		dbPath:    filepath.Join(dir, "farmcost.db"),
		backupDir: filepath.Join(dir, "backups"),
	}
}

// execute runs the root command with captured output and the given stdin.
func (e *cliEnv) execute(stdin string, args ...string) (stdout, stderr string, err error) {
	e.t.Helper()

	// Cobra parses into package-level variables, so stale values from
	// previous runs would leak if not reset.
	dbPathOverride = ""
	jsonOutput = false
	userDeleteForce = false
	reportRealTime = false
	backupUpload = false

	fullArgs := append(append([]string{}, args...), "--db", e.dbPath)

	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	rootCmd.SetOut(outBuf)
	rootCmd.SetErr(errBuf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(fullArgs)

	err = rootCmd.Execute()

	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	rootCmd.SetIn(nil)
	rootCmd.SetArgs(nil)

	return outBuf.String(), errBuf.String(), err
}

// seedSurvey inserts one survey row directly into the database.
func (e *cliEnv) seedSurvey(origin string, year int, fertilizer string) {
	e.t.Helper()
	st, err := store.NewSQLiteStore(e.dbPath)
	if err != nil {
		e.t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	if _, err := st.DB().Exec(
		"INSERT INTO Survey_Standardized (survey_origin, survey_year, synthetic_fertilizer_last_year_1_name) VALUES (?, ?, ?)",
		origin, year, fertilizer,
	); err != nil {
		e.t.Fatalf("insert survey row: %v", err)
	}
}

// --- User Tests ---

func TestUserAdd_ThenList(t *testing.T) {
	env := newCLIEnv(t)

	stdout, _, err := env.execute("s3cret\n", "user", "add", "analyst")
	if err != nil {
		t.Fatalf("user add: %v", err)
	}
	if !strings.Contains(stdout, `Added user "analyst"`) {
		t.Errorf("stdout = %q", stdout)
	}

	stdout, _, err = env.execute("", "user", "list")
	if err != nil {
		t.Fatalf("user list: %v", err)
	}
	if !strings.Contains(stdout, "USERNAME") || !strings.Contains(stdout, "analyst") {
		t.Errorf("stdout = %q, want a table listing analyst", stdout)
	}
}

func TestUserAdd_PasswordWithoutNewline(t *testing.T) {
	env := newCLIEnv(t)

	if _, _, err := env.execute("s3cret", "user", "add", "analyst"); err != nil {
		t.Fatalf("user add: %v", err)
	}
}

func TestUserAdd_Duplicate(t *testing.T) {
	env := newCLIEnv(t)
	if _, _, err := env.execute("one\n", "user", "add", "analyst"); err != nil {
		t.Fatalf("first add: %v", err)
	}

	_, _, err := env.execute("two\n", "user", "add", "analyst")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second add error = %v, want already exists", err)
	}
}

func TestUserAdd_EmptyPassword(t *testing.T) {
	env := newCLIEnv(t)

	if _, _, err := env.execute("\n", "user", "add", "analyst"); err == nil {
		t.Error("user add with empty password succeeded")
	}
}

func TestUserList_JSON(t *testing.T) {
	env := newCLIEnv(t)
	if _, _, err := env.execute("pw\n", "user", "add", "admin"); err != nil {
		t.Fatalf("user add: %v", err)
	}
	if _, _, err := env.execute("pw\n", "user", "add", "analyst"); err != nil {
		t.Fatalf("user add: %v", err)
	}

	stdout, _, err := env.execute("", "user", "list", "--json")
	if err != nil {
		t.Fatalf("user list: %v", err)
	}

	var got struct {
		Users []struct {
			Username string `json:"username"`
			Admin    bool   `json:"admin"`
		} `json:"users"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if got.Total != 2 || len(got.Users) != 2 {
		t.Fatalf("users = %+v, want 2", got)
	}
	for _, u := range got.Users {
		if u.Admin != (u.Username == "admin") {
			t.Errorf("user %s admin = %v", u.Username, u.Admin)
		}
	}
}

func TestUserList_Empty(t *testing.T) {
	env := newCLIEnv(t)

	stdout, _, err := env.execute("", "user", "list")
	if err != nil {
		t.Fatalf("user list: %v", err)
	}
	if !strings.Contains(stdout, "No users found.") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestUserDelete_Force(t *testing.T) {
	env := newCLIEnv(t)
	if _, _, err := env.execute("pw\n", "user", "add", "analyst"); err != nil {
		t.Fatalf("user add: %v", err)
	}

	stdout, _, err := env.execute("", "user", "delete", "analyst", "--force")
	if err != nil {
		t.Fatalf("user delete: %v", err)
	}
	if !strings.Contains(stdout, `Deleted user "analyst"`) {
		t.Errorf("stdout = %q", stdout)
	}

	stdout, _, _ = env.execute("", "user", "list")
	if strings.Contains(stdout, "analyst") {
		t.Errorf("analyst still listed: %q", stdout)
	}
}

func TestUserDelete_Confirmation(t *testing.T) {
	env := newCLIEnv(t)
	if _, _, err := env.execute("pw\n", "user", "add", "analyst"); err != nil {
		t.Fatalf("user add: %v", err)
	}

	// Mismatched confirmation aborts without error
	_, stderr, err := env.execute("someone-else\n", "user", "delete", "analyst")
	if err != nil {
		t.Fatalf("aborted delete returned error: %v", err)
	}
	if !strings.Contains(stderr, "Aborted") {
		t.Errorf("stderr = %q, want abort notice", stderr)
	}
	stdout, _, _ := env.execute("", "user", "list")
	if !strings.Contains(stdout, "analyst") {
		t.Error("analyst deleted despite aborted confirmation")
	}

	// Matching confirmation deletes
	if _, _, err := env.execute("analyst\n", "user", "delete", "analyst"); err != nil {
		t.Fatalf("confirmed delete: %v", err)
	}
	stdout, _, _ = env.execute("", "user", "list")
	if strings.Contains(stdout, "analyst") {
		t.Error("analyst still listed after confirmed delete")
	}
}

func TestUserDelete_NotFound(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.execute("", "user", "delete", "ghost", "--force")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want not found", err)
	}
}

// --- Ingest Tests ---

func TestIngest_Kind_JSON(t *testing.T) {
	env := newCLIEnv(t)
	env.seedSurvey("KE", 2020, "Urea")

	stdout, _, err := env.execute("", "ingest", "fertilizer_costs", "--json")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	var got struct {
		Results []types.IngestResult `json:"results"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if len(got.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(got.Results))
	}
	if r := got.Results[0]; r.Kind != "fertilizer_cost" || r.Inserted != 1 {
		t.Errorf("result = %+v, want fertilizer_cost with 1 inserted", r)
	}

	// Re-running inserts nothing
	stdout, _, err = env.execute("", "ingest", "fertilizer_cost", "--json")
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if got.Results[0].Inserted != 0 {
		t.Errorf("second ingest inserted = %d, want 0", got.Results[0].Inserted)
	}
}

func TestIngest_All_Table(t *testing.T) {
	env := newCLIEnv(t)
	env.seedSurvey("KE", 2020, "Urea")

	stdout, _, err := env.execute("", "ingest", "all")
	if err != nil {
		t.Fatalf("ingest all: %v", err)
	}
	for _, want := range []string{"KIND", "fertilizer_cost", "origin_economics_data", "unit_conversion_data"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q: %q", want, stdout)
		}
	}
}

func TestIngest_UnknownKind(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.execute("", "ingest", "compost")
	if err == nil || !strings.Contains(err.Error(), "compost") {
		t.Errorf("error = %v, want unknown kind", err)
	}
}

// --- Report Tests ---

func TestReport_JSON(t *testing.T) {
	env := newCLIEnv(t)
	env.seedSurvey("KE", 2020, "Urea")
	if _, _, err := env.execute("", "ingest", "fertilizer_cost"); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	stdout, _, err := env.execute("", "report", "--json")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	var tables map[string]types.TableQuality
	if err := json.Unmarshal([]byte(stdout), &tables); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	// An ingested cost row carries its key fields only: price and unit are missing
	if got := tables["appFertilizerCostData"].TotalMissing; got != 2 {
		t.Errorf("appFertilizerCostData missing = %d, want 2", got)
	}
}

func TestReport_RealTime(t *testing.T) {
	env := newCLIEnv(t)
	env.seedSurvey("KE", 2020, "Urea")
	if _, _, err := env.execute("", "ingest", "fertilizer_cost"); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	stdout, _, err := env.execute("", "report", "--real-time")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(stdout, "Total missing: 2") || !strings.Contains(stdout, "appFertilizerCostData") {
		t.Errorf("stdout = %q", stdout)
	}
}

// --- Backup Tests ---

func TestBackup_WritesFile(t *testing.T) {
	env := newCLIEnv(t)

	stdout, _, err := env.execute("", "backup", "--json")
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	var got struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if filepath.Dir(got.Path) != env.backupDir {
		t.Errorf("path = %q, want it under %q", got.Path, env.backupDir)
	}
	if _, err := os.Stat(got.Path); err != nil {
		t.Errorf("backup file: %v", err)
	}
}

func TestBackup_UploadWithoutBucket(t *testing.T) {
	env := newCLIEnv(t)

	_, _, err := env.execute("", "backup", "--upload")
	if !errors.Is(err, snapshot.ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
	if entries, _ := os.ReadDir(env.backupDir); len(entries) != 0 {
		t.Errorf("backup written despite upload failure: %v", entries)
	}
}
