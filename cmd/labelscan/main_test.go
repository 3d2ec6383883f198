package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[[credentials]]
label = "primary"
client_id = "test-client"
client_secret = "test-secret"

[output]
dir = %q

[logging]
dir = %q
level = "error"
format = "json"
`, filepath.Join(base, "output"), filepath.Join(base, "logs"))
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func runCLI(t *testing.T, args []string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output missing %q:\n%s", want, output)
	}
}

func TestConfigInitCreatesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, []string{"config", "init", "--path", target})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, []string{"config", "init", "--path", target}); err == nil {
		t.Fatal("expected error when config already exists without --overwrite")
	}
	if _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCLI(t, []string{"--config", configPath, "config", "validate"})
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, configPath)
}

func TestConfigShowRedactsCredentials(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCLI(t, []string{"--config", configPath, "config", "show"})
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "credential primary")
	requireContains(t, out, "test****")
	if strings.Contains(out, "test-client") {
		t.Fatal("client id printed unredacted")
	}
	if strings.Contains(out, "test-secret") {
		t.Fatal("client secret printed")
	}
}

func TestScanListFromCSV(t *testing.T) {
	configPath := writeTestConfig(t)

	csvPath := filepath.Join(t.TempDir(), "ids.csv")
	if err := os.WriteFile(csvPath, []byte("tracking_number,account\n1ZAAA,ACCT1\n1ZBBB,ACCT2\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	out, err := runCLI(t, []string{"--config", configPath, "scan", "--csv", csvPath, "--list"})
	if err != nil {
		t.Fatalf("scan --list: %v", err)
	}
	requireContains(t, out, "1ZAAA")
	requireContains(t, out, "1ZBBB")
	requireContains(t, out, "2 identifiers selected")
}

func TestScanMissingDatabase(t *testing.T) {
	configPath := writeTestConfig(t)

	_, err := runCLI(t, []string{"--config", configPath, "scan", "--db", filepath.Join(t.TempDir(), "missing.db")})
	if err == nil {
		t.Fatal("expected error for missing source database")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("error = %v", err)
	}
}
