package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/cloudgraph/internal/collect"
	"github.com/phobologic/cloudgraph/internal/config"
	"github.com/phobologic/cloudgraph/internal/model"
)

const fnARN = "arn:aws:lambda:us-east-1:123456789012:function:"

func noEnv(string) string { return "" }

func writeTestFile(t *testing.T, root, rel string, content []byte) string {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func zipOf(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// createSnapshot writes a snapshot with one API, one topic and three
// functions, one of which has no DEV alias. It returns the snapshot path.
func createSnapshot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	orders := writeTestFile(t, dir, "orders.zip", zipOf(t, "handler.py", `ORDER_TOPIC = 'arn:aws:sns:us-east-1:123456789012:order-created'

def handler(event, context):
    dynamodb.Table('Orders').put_item(Item=event)
`))
	mailer := writeTestFile(t, dir, "mailer.zip", zipOf(t, "index.js", `exports.handler = function (event) {
  return db.get({ TableName: "Customers", Key: event.id });
};
`))

	snap := collect.Static{
		APIs: []collect.StaticAPI{{
			ID:   "a1",
			Name: "shop",
			Resources: []collect.StaticResource{{
				ID:   "r1",
				Path: "/orders/{id}",
				Integrations: map[string]string{
					"POST": "arn:aws:apigateway:us-east-1:lambda:path/2015-03-31/functions/" + fnARN + "orders:DEV/invocations",
				},
			}},
		}},
		Topics: []collect.StaticTopic{{
			ARN: "arn:aws:sns:us-east-1:123456789012:order-created",
			Subscriptions: []collect.StaticSubscription{
				{Protocol: "lambda", Endpoint: fnARN + "mailer:DEV"},
			},
		}},
		Functions: []collect.StaticFunction{
			{Name: "orders", Runtime: "python3.12", Variants: map[string]collect.StaticVariant{
				"DEV": {Location: orders, CodeSHA256: "o1"},
			}},
			{Name: "mailer", Runtime: "nodejs18.x", Variants: map[string]collect.StaticVariant{
				"DEV": {Location: mailer, CodeSHA256: "m1"},
			}},
			{Name: "reports", Runtime: "python3.12", Variants: map[string]collect.StaticVariant{
				"PROD": {Location: filepath.Join(dir, "reports.zip")},
			}},
		},
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	return writeTestFile(t, dir, "snapshot.json", data)
}

func TestRunDOT(t *testing.T) {
	t.Parallel()
	path := createSnapshot(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-snapshot", path}, &stdout, &stderr, noEnv); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	out := stdout.String()
	if !strings.HasPrefix(out, "digraph lambda {\noverlap=scalexy;\nsep=0.1;\n") {
		t.Errorf("missing preamble:\n%s", out)
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Errorf("missing closing brace:\n%s", out)
	}

	for _, want := range []string{
		`"shop" [shape=box`,
		`"shop/orders/(id)" [shape=record`,
		`label="/orders/(id) | {<POST>POST}"`,
		`"shop/orders/(id)":"POST" -> "orders:DEV";`,
		`"order-created" -> "mailer:DEV";`,
		`"orders:DEV" -> "order-created" [tooltip="handler.py:1"];`,
		`"orders:DEV" -> "OrdersDEV" [tooltip="handler.py:4 handler"];`,
		`"OrdersDEV" -> "orders:DEV"`,
		`"mailer:DEV" -> "Customers-development"`,
		`"Customers-development" -> "mailer:DEV"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "reports") {
		t.Errorf("function without DEV alias should be skipped:\n%s", out)
	}
	if strings.Contains(out, "{id}") {
		t.Errorf("path braces should be sanitized:\n%s", out)
	}
}

func TestRunTOON(t *testing.T) {
	t.Parallel()
	path := createSnapshot(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-snapshot", path, "-format", "toon"}, &stdout, &stderr, noEnv); err != nil {
		t.Fatalf("run: %v", err)
	}

	out := stdout.String()
	for _, want := range []string{
		"graph: lambda",
		"nodes[7]{label,kind,rank}:",
		"edges[8]{source,port,target,site}:",
		`"orders:DEV",function,`,
		`shop/orders/(id),POST,"orders:DEV",""`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunParallelMatchesSequential(t *testing.T) {
	t.Parallel()
	path := createSnapshot(t)

	var seq, par, stderr bytes.Buffer
	if err := run([]string{"-snapshot", path}, &seq, &stderr, noEnv); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := run([]string{"-snapshot", path, "-parallel"}, &par, &stderr, noEnv); err != nil {
		t.Fatalf("run -parallel: %v", err)
	}
	if seq.String() != par.String() {
		t.Errorf("parallel output differs\nsequential:\n%s\nparallel:\n%s", seq.String(), par.String())
	}
}

func TestRunFocus(t *testing.T) {
	t.Parallel()
	path := createSnapshot(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-snapshot", path, "-focus", "customers"}, &stdout, &stderr, noEnv); err != nil {
		t.Fatalf("run: %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, `"Customers-development"`) || !strings.Contains(out, `"mailer:DEV"`) {
		t.Errorf("focus should keep match and neighbour:\n%s", out)
	}
	if strings.Contains(out, `"shop"`) || strings.Contains(out, `"order-created"`) {
		t.Errorf("focus should drop unrelated nodes:\n%s", out)
	}
}

func TestRunTop(t *testing.T) {
	t.Parallel()
	path := createSnapshot(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-snapshot", path, "-format", "toon", "-top", "2"}, &stdout, &stderr, noEnv); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), "nodes[2]{label,kind,rank}:") {
		t.Errorf("expected 2 nodes:\n%s", stdout.String())
	}
}

func TestRunQualifierFromEnv(t *testing.T) {
	t.Parallel()
	path := createSnapshot(t)

	getenv := func(key string) string {
		if key == "CLOUDGRAPH_QUALIFIER" {
			return "PROD"
		}
		return ""
	}

	var stdout, stderr bytes.Buffer
	err := run([]string{"-snapshot", path}, &stdout, &stderr, getenv)
	// reports:PROD points at a package that does not exist.
	if !errors.Is(err, model.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("no output expected on fatal error, got:\n%s", stdout.String())
	}
}

func TestRunStyleGap(t *testing.T) {
	t.Parallel()
	path := createSnapshot(t)
	stylePath := writeTestFile(t, t.TempDir(), "styles.hcl", []byte(`
style "function" {
  shape = "ellipse"
  color = "orange"
}
`))

	var stdout, stderr bytes.Buffer
	err := run([]string{"-snapshot", path, "-style", stylePath}, &stdout, &stderr, noEnv)
	if !errors.Is(err, model.ErrConfigurationGap) {
		t.Fatalf("expected ErrConfigurationGap, got %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("no output expected on fatal error, got:\n%s", stdout.String())
	}
}

func TestRunBadPackageKeepsNode(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	broken := writeTestFile(t, dir, "broken.zip", []byte("not a zip"))
	data, err := json.Marshal(collect.Static{Functions: []collect.StaticFunction{
		{Name: "broken", Runtime: "python3.12", Variants: map[string]collect.StaticVariant{
			"DEV": {Location: broken},
		}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	path := writeTestFile(t, dir, "snapshot.json", data)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-snapshot", path, "-log-format", "json"}, &stdout, &stderr, noEnv); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), `"broken:DEV" [shape=ellipse`) {
		t.Errorf("function node should be kept:\n%s", stdout.String())
	}
	if !strings.Contains(stderr.String(), `"function":"broken"`) {
		t.Errorf("expected a structured warning, got:\n%s", stderr.String())
	}
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--version"}, &stdout, &stderr, noEnv); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(stdout.String(), "cloudgraph ") {
		t.Errorf("unexpected version output: %q", stdout.String())
	}
}

func TestRunUsageError(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"-format", "svg"}, &stdout, &stderr, noEnv)
	var exitErr *config.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 2 {
		t.Fatalf("expected exit code 2, got %v", err)
	}
}

func TestRunMissingSnapshot(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"-snapshot", filepath.Join(t.TempDir(), "none.json")}, &stdout, &stderr, noEnv)
	if err == nil {
		t.Fatal("expected error for missing snapshot")
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level, format string
		wantDebug     bool
		wantJSON      bool
	}{
		{"debug", "text", true, false},
		{"info", "json", false, true},
		{"bogus", "bogus", false, false},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := newLogger(tt.level, tt.format, &buf)
		logger.Debug("sample")
		logger.Info("sample")
		out := buf.String()
		if got := strings.Count(out, "sample") == 2; got != tt.wantDebug {
			t.Errorf("%s/%s: debug enabled = %v, want %v", tt.level, tt.format, got, tt.wantDebug)
		}
		if got := strings.HasPrefix(out, "{"); got != tt.wantJSON {
			t.Errorf("%s/%s: json = %v, want %v", tt.level, tt.format, got, tt.wantJSON)
		}
	}
}
