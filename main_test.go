package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("os.MkdirAll() error: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("os.WriteFile() error: %v", err)
		}
	}
	return dir
}

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--no-input", "--log-level", "error"}, args...))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

var sampleProject = map[string]string{
	"src/main/resources/messages.properties":    "greeting.hello=Hello\nfarewell=Bye\n",
	"src/main/resources/messages_ko.properties": "greeting.hello=안녕하세요\n",
	"src/main/resources/messages_en.yml":        "user:\n  login: Log in\n",
	"src/main/java/App.java":                    "msg(\"greeting.hello\");\nmsg(\"user.logout\");\n",
}

func TestGroupKeys(t *testing.T) {
	keys := []string{"a.b.c", "a.b.d", "a.x", "solo", "z.y"}
	want := []keyGroup{
		{Path: "a.b", Leaves: []string{"c", "d"}},
		{Path: "a", Leaves: []string{"x"}},
		{Path: "", Leaves: []string{"solo"}},
		{Path: "z", Leaves: []string{"y"}},
	}
	if got := groupKeys(keys); !reflect.DeepEqual(got, want) {
		t.Fatalf("groupKeys() = %#v, want %#v", got, want)
	}
}

func TestPosition(t *testing.T) {
	text := "first\n안녕 key.one\nx"
	tests := []struct {
		offset    int
		line, col int
	}{
		{0, 1, 1},
		{3, 1, 4},
		{strings.Index(text, "key.one"), 2, 4},
		{len(text) - 1, 3, 1},
	}
	for _, tc := range tests {
		line, col := position(text, tc.offset)
		if line != tc.line || col != tc.col {
			t.Fatalf("position(%d) = %d:%d, want %d:%d", tc.offset, line, col, tc.line, tc.col)
		}
	}
}

func TestLocaleDisplayName(t *testing.T) {
	if got := localeDisplayName("ko"); got != "🇰🇷 한국어 (Korean)" {
		t.Fatalf("localeDisplayName(ko) = %q", got)
	}
	if got := localeDisplayName("en"); !strings.HasSuffix(got, "English") {
		t.Fatalf("localeDisplayName(en) = %q", got)
	}
	if got := localeDisplayName("default"); got == "" {
		t.Fatalf("localeDisplayName(default) is empty")
	}
	if got := localeDisplayName("not a locale"); got != "" {
		t.Fatalf("localeDisplayName(invalid) = %q, want empty", got)
	}
}

func TestGetCommand(t *testing.T) {
	dir := writeProject(t, sampleProject)

	out, _, err := run(t, "--root", dir, "--locale", "ko", "get", "greeting.hello")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if strings.TrimSpace(out) != "안녕하세요" {
		t.Fatalf("get = %q, want %q", out, "안녕하세요")
	}

	// Not in ko: falls back through the configured locales to default.
	out, _, err = run(t, "--root", dir, "--locale", "ko", "get", "farewell")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if strings.TrimSpace(out) != "Bye" {
		t.Fatalf("get farewell = %q, want %q", out, "Bye")
	}

	if _, _, err := run(t, "--root", dir, "get", "no.such.key"); err == nil {
		t.Fatalf("get of a missing key should fail")
	}
}

func TestKeysCommand(t *testing.T) {
	dir := writeProject(t, sampleProject)

	out, _, err := run(t, "--root", dir, "keys")
	if err != nil {
		t.Fatalf("keys error: %v", err)
	}
	want := "farewell\ngreeting.hello\nuser.login\n"
	if out != want {
		t.Fatalf("keys = %q, want %q", out, want)
	}
}

func TestSetAndDeleteCommands(t *testing.T) {
	dir := writeProject(t, sampleProject)
	ko := filepath.Join(dir, "src/main/resources/messages_ko.properties")

	if _, _, err := run(t, "--root", dir, "--locale", "ko", "set", "farewell", "안녕히 가세요"); err != nil {
		t.Fatalf("set error: %v", err)
	}
	data, err := os.ReadFile(ko)
	if err != nil {
		t.Fatalf("os.ReadFile() error: %v", err)
	}
	if got, want := string(data), "greeting.hello=안녕하세요\nfarewell=안녕히 가세요\n"; got != want {
		t.Fatalf("messages_ko.properties = %q, want %q", got, want)
	}

	if _, _, err := run(t, "--root", dir, "delete", "farewell"); err == nil {
		t.Fatalf("delete without a terminal or --force should fail")
	}
	if _, _, err := run(t, "--root", dir, "delete", "--force", "farewell"); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	data, _ = os.ReadFile(ko)
	if got, want := string(data), "greeting.hello=안녕하세요\n"; got != want {
		t.Fatalf("messages_ko.properties after delete = %q, want %q", got, want)
	}
	data, _ = os.ReadFile(filepath.Join(dir, "src/main/resources/messages.properties"))
	if got, want := string(data), "greeting.hello=Hello\n"; got != want {
		t.Fatalf("messages.properties after delete = %q, want %q", got, want)
	}
}

func TestSetCommandReportsEmptyAndDeclined(t *testing.T) {
	dir := writeProject(t, sampleProject)
	ko := filepath.Join(dir, "src/main/resources/messages_ko.properties")

	_, stderr, err := run(t, "--root", dir, "--locale", "ko", "set", "farewell", "")
	if err != nil {
		t.Fatalf("set error: %v", err)
	}
	if !strings.Contains(stderr, "written with an empty value") {
		t.Fatalf("set of an empty value reported:\n%s", stderr)
	}
	data, _ := os.ReadFile(ko)
	if got, want := string(data), "greeting.hello=안녕하세요\nfarewell=\n"; got != want {
		t.Fatalf("messages_ko.properties = %q, want %q", got, want)
	}

	_, stderr, err = run(t, "--root", dir, "--locale", "fr", "set", "farewell", "")
	if err != nil {
		t.Fatalf("set error: %v", err)
	}
	if !strings.Contains(stderr, "was not written") {
		t.Fatalf("declined set reported:\n%s", stderr)
	}
}

func TestScanCommand(t *testing.T) {
	dir := writeProject(t, sampleProject)
	src := filepath.Join(dir, "src/main/java/App.java")

	out, _, err := run(t, "--root", dir, "--locale", "ko", "--key-regex", `msg\("([^"]+)"\)`, "scan", src)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if !strings.Contains(out, ":1:6") || !strings.Contains(out, "안녕하세요") {
		t.Fatalf("scan output misses the resolved key:\n%s", out)
	}
	if !strings.Contains(out, "user.logout") {
		t.Fatalf("scan output misses the unresolved key:\n%s", out)
	}

	if _, _, err := run(t, "--root", dir, "--key-regex", `msg\("([^"]+)"\)`, "scan", "--strict", src); err == nil {
		t.Fatalf("scan --strict with an unresolved key should fail")
	}
}

func TestLocalesCommand(t *testing.T) {
	dir := writeProject(t, sampleProject)

	out, _, err := run(t, "--root", dir, "locales")
	if err != nil {
		t.Fatalf("locales error: %v", err)
	}
	for _, want := range []string{"default", "en", "ko", "messages_en.yml"} {
		if !strings.Contains(out, want) {
			t.Fatalf("locales output misses %q:\n%s", want, out)
		}
	}
}

func TestInvalidRoot(t *testing.T) {
	if _, _, err := run(t, "--root", filepath.Join(t.TempDir(), "missing"), "keys"); err == nil {
		t.Fatalf("keys with a missing root should fail")
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "version")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	if !strings.HasPrefix(out, "i18nlens version ") {
		t.Fatalf("version output = %q", out)
	}
}
