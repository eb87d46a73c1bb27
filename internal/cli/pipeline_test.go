package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mark3labs/oasclient/internal/client"
)

const minimalSpecYAML = "" +
	"openapi: 3.0.0\n" +
	"info:\n" +
	"  title: Test API\n" +
	"  version: '1.0.0'\n" +
	"paths:\n" +
	"  /hello:\n" +
	"    get:\n" +
	"      operationId: sayHello\n" +
	"      tags: [greeting]\n" +
	"      summary: Hello\n" +
	"      responses:\n" +
	"        '200':\n" +
	"          description: ok\n" +
	"  /items/{id}:\n" +
	"    get:\n" +
	"      operationId: getItem\n" +
	"      tags: [items]\n" +
	"      parameters:\n" +
	"        - name: id\n" +
	"          in: path\n" +
	"          required: true\n" +
	"          schema:\n" +
	"            type: integer\n" +
	"        - name: tags\n" +
	"          in: query\n" +
	"          schema:\n" +
	"            type: array\n" +
	"            items:\n" +
	"              type: string\n" +
	"      responses:\n" +
	"        '200':\n" +
	"          description: ok\n" +
	"    put:\n" +
	"      operationId: putItem\n" +
	"      tags: [items]\n" +
	"      parameters:\n" +
	"        - name: id\n" +
	"          in: path\n" +
	"          required: true\n" +
	"          schema:\n" +
	"            type: integer\n" +
	"      requestBody:\n" +
	"        required: true\n" +
	"        content:\n" +
	"          application/json:\n" +
	"            schema:\n" +
	"              type: object\n" +
	"              required: [name]\n" +
	"              properties:\n" +
	"                name:\n" +
	"                  type: string\n" +
	"                count:\n" +
	"                  type: integer\n" +
	"      responses:\n" +
	"        '200':\n" +
	"          description: ok\n" +
	"  /health:\n" +
	"    get:\n" +
	"      responses:\n" +
	"        '200':\n" +
	"          description: ok\n"

func writeSpec(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "spec.yaml")
	if err := os.WriteFile(p, []byte(minimalSpecYAML), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return p
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGeneratePipeline_Stdout(t *testing.T) {
	t.Parallel()
	specPath := writeSpec(t)

	out, err := execute("--silent", "generate", "--input", specPath, "--target", "stdout", "--allow-missing-ids", "--package", "hello")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{"package hello", "func (c *Client) SayHello(", "func (c *Client) PutItem("} {
		if !strings.Contains(out, want) {
			t.Fatalf("stdout missing %q:\n%s", want, out)
		}
	}
}

func TestGeneratePipeline_PathGlobs(t *testing.T) {
	t.Parallel()
	specPath := writeSpec(t)

	out, err := execute("--silent", "generate", "-i", specPath, "--target", "stdout", "--paths", "/items/*")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.Contains(out, "SayHello") || !strings.Contains(out, "func (c *Client) GetItem(") {
		t.Fatalf("path filter not applied:\n%s", out)
	}
}

func TestGeneratePipeline_OperationFilters(t *testing.T) {
	t.Parallel()
	specPath := writeSpec(t)

	cases := []struct {
		name string
		args []string
		want []string
		not  []string
	}{
		{
			name: "methods",
			args: []string{"--methods", "PUT"},
			want: []string{"func (c *Client) PutItem("},
			not:  []string{"GetItem", "SayHello"},
		},
		{
			name: "path pattern",
			args: []string{"--path-pattern", "^/hello$"},
			want: []string{"func (c *Client) SayHello("},
			not:  []string{"GetItem", "PutItem"},
		},
		{
			name: "include tags with methods",
			args: []string{"--include-tags", "items", "--methods", "get"},
			want: []string{"func (c *Client) GetItem("},
			not:  []string{"PutItem", "SayHello"},
		},
		{
			name: "exclude tags",
			args: []string{"--exclude-tags", "items", "--allow-missing-ids"},
			want: []string{"func (c *Client) SayHello("},
			not:  []string{"GetItem", "PutItem"},
		},
	}
	for _, tc := range cases {
		args := append([]string{"--silent", "generate", "-i", specPath, "--target", "stdout"}, tc.args...)
		out, err := execute(args...)
		if err != nil {
			t.Fatalf("%s: execute: %v", tc.name, err)
		}
		for _, want := range tc.want {
			if !strings.Contains(out, want) {
				t.Fatalf("%s: stdout missing %q", tc.name, want)
			}
		}
		for _, not := range tc.not {
			if strings.Contains(out, not) {
				t.Fatalf("%s: stdout unexpectedly contains %q", tc.name, not)
			}
		}
	}
}

func TestGeneratePipeline_InvalidFilters(t *testing.T) {
	t.Parallel()
	specPath := writeSpec(t)
	for _, args := range [][]string{
		{"--path-pattern", "("},
		{"--methods", "fetch"},
		{"--paths", "/items/[a"},
	} {
		full := append([]string{"--silent", "generate", "-i", specPath, "--target", "stdout"}, args...)
		if _, err := execute(full...); !errors.Is(err, ErrUsage) {
			t.Fatalf("%v: expected usage error, got %v", args, err)
		}
	}
}

func TestGeneratePipeline_DryRun(t *testing.T) {
	t.Parallel()
	specPath := writeSpec(t)
	outPath := filepath.Join(t.TempDir(), "out", "client.go")

	out, err := execute("--silent", "generate", "-i", specPath, "-o", outPath, "--allow-missing-ids", "--dry-run")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Planned writes (1 files):") || !strings.Contains(out, outPath) {
		t.Fatalf("expected dry-run plan output, got: %s", out)
	}
	// Dry-run should not create the directory
	if _, err := os.Stat(filepath.Dir(outPath)); err == nil {
		t.Fatalf("expected no writes on dry-run")
	}
}

func TestGeneratePipeline_MissingOperationIDs(t *testing.T) {
	t.Parallel()
	specPath := writeSpec(t)

	_, err := execute("--silent", "generate", "--input", specPath, "--target", "stdout")
	if !errors.Is(err, client.ErrMissingOperationID) {
		t.Fatalf("expected missing operation id error, got %v", err)
	}
	if !strings.Contains(err.Error(), "GET /health") {
		t.Fatalf("error should list the operation: %v", err)
	}
	if ExitCode(err) != 2 {
		t.Fatalf("exit code = %d", ExitCode(err))
	}
}

func TestGeneratePipeline_File(t *testing.T) {
	t.Parallel()
	specPath := writeSpec(t)
	outPath := filepath.Join(t.TempDir(), "hello", "client.go")

	args := []string{"--silent", "generate", "-i", specPath, "-o", outPath, "--allow-missing-ids", "--module", "--module-path", "example.com/hello"}
	out, err := execute(args...)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Wrote "+outPath) {
		t.Fatalf("unexpected output: %s", out)
	}
	mod, err := os.ReadFile(filepath.Join(filepath.Dir(outPath), "go.mod"))
	if err != nil || !strings.Contains(string(mod), "module example.com/hello") {
		t.Fatalf("go.mod: %v %s", err, mod)
	}

	if _, err := execute(args...); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error for existing output, got %v", err)
	}
	if _, err := execute(append(args, "--force")...); err != nil {
		t.Fatalf("forced execute: %v", err)
	}
}

func TestGeneratePipeline_InvalidDocument(t *testing.T) {
	t.Parallel()
	p := filepath.Join(t.TempDir(), "spec.yaml")
	if err := os.WriteFile(p, []byte("openapi: 3.0.0\ninfo: [oops\n"), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	_, err := execute("--silent", "generate", "-i", p, "--target", "stdout")
	if err == nil || ExitCode(err) != 2 {
		t.Fatalf("expected document error with exit code 2, got %v", err)
	}
	if !strings.Contains(err.Error(), "Location:") {
		t.Fatalf("document error should carry its location: %v", err)
	}
}

func itemServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/items/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%q,"tags":%q,"auth":%q}`,
			chi.URLParam(req, "id"), strings.Join(req.URL.Query()["tags"], "|"), req.Header.Get("Authorization"))
	})
	r.Put("/items/{id}", func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		w.Header().Set("Content-Type", req.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write(body)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestCallPipeline_CoercesValues(t *testing.T) {
	t.Parallel()
	srv := itemServer(t)
	specPath := writeSpec(t)

	out, err := execute("--silent", "call", "-i", specPath, "--base-url", srv.URL,
		"--operation", "getItem", "--param", "id=7", "--query", "tags=a,b", "-H", "Authorization: Bearer x")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out, "HTTP 200 OK\n") {
		t.Fatalf("unexpected status line: %s", out)
	}
	for _, want := range []string{`"id": "7"`, `"tags": "a|b"`, `"auth": "Bearer x"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %s:\n%s", want, out)
		}
	}
}

func TestCallPipeline_ByRouteWithBody(t *testing.T) {
	t.Parallel()
	srv := itemServer(t)
	specPath := writeSpec(t)

	out, err := execute("--silent", "call", "-i", specPath, "--base-url", srv.URL,
		"--method", "PUT", "--path", "/items/{id}", "--param", "id=3", "--field", "name=box", "--field", "count=2")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(out, "HTTP 202 Accepted\n") || !strings.Contains(out, `"count": 2`) {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestCallPipeline_ValidationFailure(t *testing.T) {
	t.Parallel()
	srv := itemServer(t)
	specPath := writeSpec(t)

	_, err := execute("--silent", "call", "-i", specPath, "--base-url", srv.URL,
		"--operation", "putItem", "--param", "id=3", "--data", `{"count":"many"}`)
	var rbe *client.RequestBodyValidationError
	if !errors.As(err, &rbe) {
		t.Fatalf("expected request body validation error, got %v", err)
	}
	if ExitCode(err) != 1 {
		t.Fatalf("exit code = %d", ExitCode(err))
	}

	_, err = execute("--silent", "call", "-i", specPath, "--base-url", srv.URL,
		"--operation", "putItem", "--param", "id=3", "--data", `{"count":"many"}`, "--no-validate")
	if err != nil {
		t.Fatalf("validation should be skipped: %v", err)
	}
}

func TestCallPipeline_OperationFilters(t *testing.T) {
	t.Parallel()
	srv := itemServer(t)
	specPath := writeSpec(t)

	out, err := execute("--silent", "call", "-i", specPath, "--base-url", srv.URL,
		"--operation", "getItem", "--param", "id=4", "--methods", "get", "--include-tags", "items", "--paths", "/items/*")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, `"id": "4"`) {
		t.Fatalf("unexpected output:\n%s", out)
	}

	for _, args := range [][]string{
		{"--exclude-tags", "items"},
		{"--methods", "put"},
		{"--path-pattern", "^/hello"},
	} {
		full := append([]string{"--silent", "call", "-i", specPath, "--base-url", srv.URL, "--operation", "getItem", "--param", "id=4"}, args...)
		_, err := execute(full...)
		if !errors.Is(err, client.ErrUnknownOperation) {
			t.Fatalf("%v: expected filtered operation to be unknown, got %v", args, err)
		}
	}
}

func TestCallPipeline_UnknownOperation(t *testing.T) {
	t.Parallel()
	specPath := writeSpec(t)
	_, err := execute("--silent", "call", "-i", specPath, "--operation", "nope")
	if !errors.Is(err, client.ErrUnknownOperation) || !errors.Is(err, ErrUsage) {
		t.Fatalf("expected unknown operation usage error, got %v", err)
	}
}
