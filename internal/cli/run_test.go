package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFileForTest(t *testing.T, path, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func runCLI(args []string, cwd string) (stdout, stderr string, exitCode int) {
	var out, errOut bytes.Buffer

	full := append([]string{"intelweb", "--cwd", cwd, "--prefix", filepath.Join(cwd, "web")}, args...)
	exitCode = Run(nil, &out, &errOut, full, nil, nil)

	return out.String(), errOut.String(), exitCode
}

func TestMainHelp(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	exitCode := Run(nil, &stdout, &stderr, []string{"intelweb"}, nil, nil)
	if exitCode != 0 {
		t.Fatalf("exit code = %d, want 0", exitCode)
	}

	out := stdout.String()
	if !strings.Contains(out, "intelweb - disk-resident bidirectional threat-intel crawl engine") {
		t.Error("stdout should contain title")
	}

	for _, want := range []string{"create", "ingest", "crawl", "purge", "stats", "repl", "print-config"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout should list command %q", want)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, stderr, exitCode := runCLI([]string{"bogus"}, dir)
	if exitCode != 1 {
		t.Fatalf("exit code = %d, want 1", exitCode)
	}

	if !strings.Contains(stderr, "unknown command") {
		t.Errorf("stderr = %q, want mention of unknown command", stderr)
	}
}

func TestCreateIngestCrawlPurgeStatsEndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, stderr, exitCode := runCLI([]string{"create", "--max-items", "16"}, dir)
	if exitCode != 0 {
		t.Fatalf("create: exit=%d stderr=%s", exitCode, stderr)
	}

	telemetry := dir + "/telemetry.log"
	writeFileForTest(t, telemetry, "FILE bad.exe benign.dll\nFILE benign.dll other.dll\n")

	stdout, stderr, exitCode := runCLI([]string{"ingest", telemetry}, dir)
	if exitCode != 0 {
		t.Fatalf("ingest: exit=%d stderr=%s", exitCode, stderr)
	}

	if !strings.Contains(stdout, "accepted 2") {
		t.Errorf("ingest stdout = %q, want accepted 2", stdout)
	}

	stdout, stderr, exitCode = runCLI([]string{"crawl", "--min-prevalence", "2", "bad.exe"}, dir)
	if exitCode != 0 {
		t.Fatalf("crawl: exit=%d stderr=%s", exitCode, stderr)
	}

	if !strings.Contains(stdout, "bad.exe") || !strings.Contains(stdout, "benign.dll") {
		t.Errorf("crawl stdout = %q, want bad.exe and benign.dll", stdout)
	}

	stdout, stderr, exitCode = runCLI([]string{"stats"}, dir)
	if exitCode != 0 {
		t.Fatalf("stats: exit=%d stderr=%s", exitCode, stderr)
	}

	if !strings.Contains(stdout, "entities: 3") {
		t.Errorf("stats stdout = %q, want entities: 3", stdout)
	}

	stdout, stderr, exitCode = runCLI([]string{"purge", "bad.exe"}, dir)
	if exitCode != 0 {
		t.Fatalf("purge: exit=%d stderr=%s", exitCode, stderr)
	}

	if !strings.Contains(stdout, "purged bad.exe") {
		t.Errorf("purge stdout = %q, want purged bad.exe", stdout)
	}
}

func TestPrintConfigCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	stdout, stderr, exitCode := runCLI([]string{"print-config"}, dir)
	if exitCode != 0 {
		t.Fatalf("print-config: exit=%d stderr=%s", exitCode, stderr)
	}

	if !strings.Contains(stdout, `"prefix":`) {
		t.Errorf("print-config stdout = %q, want a prefix field", stdout)
	}
}

func TestIngestRequiresAtLeastOneFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	if _, _, exitCode := runCLI([]string{"create", "--max-items", "16"}, dir); exitCode != 0 {
		t.Fatalf("create failed")
	}

	_, stderr, exitCode := runCLI([]string{"ingest"}, dir)
	if exitCode != 1 {
		t.Fatalf("exit code = %d, want 1", exitCode)
	}

	if !strings.Contains(stderr, "requires at least one telemetry file") {
		t.Errorf("stderr = %q", stderr)
	}
}
