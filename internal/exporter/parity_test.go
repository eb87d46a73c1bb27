package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// variant is one exported package compiled into the comparison program.
type variant struct {
	pkg      string
	fixture  string
	validate bool
}

var parityVariants = []variant{
	{pkg: "v2gen", fixture: "petstore-v2.yaml", validate: true},
	{pkg: "v2raw", fixture: "petstore-v2.yaml", validate: false},
	{pkg: "v3gen", fixture: "petstore-v3.yaml", validate: true},
}

// parityCase is sent through the dynamic client and the exported client.
// request holds the Request fields as Go source; PKG names the package
// whose File type a multipart body uses.
type parityCase struct {
	name    string
	variant string
	op      string
	request string

	wantURI         string
	wantContentType string
	wantBody        string
	wantStage       string
	wantFailed      bool
}

const petJSON = `Body: map[string]any{"name": "doggie", "photoUrls": []any{"a.png"}}`

var parityCases = []parityCase{
	{name: "nil query", variant: "v3gen", op: "findPetsByStatus", wantURI: "/pet/findByStatus"},
	{name: "nil query legacy", variant: "v2gen", op: "findPetsByStatus", wantURI: "/pet/findByStatus"},
	{
		name: "query value", variant: "v3gen", op: "findPetsByStatus",
		request: `Query: map[string]any{"status": "sold"}`,
		wantURI: "/pet/findByStatus?status=sold",
	},
	{
		name: "query enum violation", variant: "v2gen", op: "findPetsByStatus",
		request:    `Query: map[string]any{"status": "bogus"}`,
		wantFailed: true, wantStage: "query",
	},
	{
		name: "unencodable query validated", variant: "v2gen", op: "findPetsByStatus",
		request:    `Query: map[string]any{"status": make(chan int)}`,
		wantFailed: true, wantStage: "query",
	},
	{
		name: "unencodable query", variant: "v2raw", op: "findPetsByStatus",
		request:    `Query: map[string]any{"status": make(chan int)}`,
		wantFailed: true,
	},
	{name: "missing placeholder", variant: "v2raw", op: "getPetById", wantURI: "/pet/{petId}"},
	{name: "missing placeholder validated", variant: "v2gen", op: "getPetById", wantFailed: true, wantStage: "params"},
	{
		name: "path value", variant: "v3gen", op: "getPetById",
		request: `Params: map[string]any{"petId": 7}`,
		wantURI: "/pet/7",
	},
	{name: "empty legacy body", variant: "v2gen", op: "addPet", wantFailed: true, wantStage: "body"},
	{name: "empty request body", variant: "v3gen", op: "addPet", wantFailed: true, wantStage: "requestBody"},
	{
		name: "json body", variant: "v2gen", op: "addPet", request: petJSON,
		wantURI: "/pet", wantContentType: "application/json",
		wantBody: `{"name":"doggie","photoUrls":["a.png"]}`,
	},
	{
		name: "xml by header", variant: "v2gen", op: "addPet",
		request: petJSON + `, Headers: http.Header{"Content-Type": {"application/xml"}}`,
		wantURI: "/pet", wantContentType: "application/xml",
		wantBody: `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + `<Pet><name>doggie</name><photoUrls>a.png</photoUrls></Pet>`,
	},
	{
		name: "xml first declared", variant: "v3gen", op: "addPet", request: petJSON,
		wantURI: "/pet", wantContentType: "application/xml",
		wantBody: `<?xml version="1.0" encoding="UTF-8"?>` + "\n" + `<pet><name>doggie</name><photoUrls>a.png</photoUrls></pet>`,
	},
	{
		name: "urlencoded legacy form", variant: "v2gen", op: "updatePetWithForm",
		request: `Params: map[string]any{"petId": 5}, Body: map[string]any{"name": "rex", "status": "sold"}`,
		wantURI: "/pet/5", wantContentType: "application/x-www-form-urlencoded",
		wantBody: "name=rex&status=sold",
	},
	{
		name: "urlencoded by header", variant: "v3gen", op: "addPet",
		request: petJSON + `, Headers: http.Header{"Content-Type": {"application/x-www-form-urlencoded"}}`,
		wantURI: "/pet", wantContentType: "application/x-www-form-urlencoded",
		wantBody: "name=doggie&photoUrls=a.png",
	},
	{
		name: "multipart legacy form", variant: "v2gen", op: "uploadFile",
		request: `Params: map[string]any{"petId": 5}, Body: map[string]any{` +
			`"additionalMetadata": "m", ` +
			`"file": PKG.File{Name: "a.txt", ContentType: "text/plain", Content: strings.NewReader("hi")}}`,
		wantURI: "/pet/5/uploadImage", wantContentType: "multipart/form-data",
		wantBody: "additionalMetadata|||m\nfile|a.txt|text/plain|hi",
	},
	{
		name: "multipart", variant: "v3gen", op: "uploadFile",
		request: `Params: map[string]any{"petId": 7}, Body: map[string]any{` +
			`"file": PKG.File{Name: "b.bin", Content: strings.NewReader("xy")}}`,
		wantURI: "/pet/7/uploadImage", wantContentType: "multipart/form-data",
		wantBody: "file|b.bin|application/octet-stream|xy",
	},
}

type observation struct {
	Case        string `json:"case"`
	Impl        string `json:"impl"`
	URI         string `json:"uri"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
	Stage       string `json:"stage"`
	Failed      bool   `json:"failed"`
	Error       string `json:"error"`
}

// The exported client must send what the dynamic client sends for the same
// document and request, and fail at the same validation stage.
func TestExport_MatchesDynamicClient(t *testing.T) {
	if testing.Short() {
		t.Skip("builds and runs exported clients")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not found")
	}

	// The program imports internal packages, so it has to live inside the module.
	dir, err := os.MkdirTemp(".", "paritycheck")
	if err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	importBase := "github.com/mark3labs/oasclient/internal/exporter/" + filepath.Base(dir)

	fixtures := map[string]string{}
	for _, v := range parityVariants {
		art, err := Export(context.Background(), loadFixture(t, v.fixture), Options{Package: v.pkg, Validate: v.validate})
		if err != nil {
			t.Fatalf("export %s: %v", v.pkg, err)
		}
		if err := os.MkdirAll(filepath.Join(dir, v.pkg), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, v.pkg, "client.go"), art.Source, 0o644); err != nil {
			t.Fatalf("write %s: %v", v.pkg, err)
		}
		abs, err := filepath.Abs(filepath.Join("..", "..", "testdata", v.fixture))
		if err != nil {
			t.Fatalf("abs: %v", err)
		}
		fixtures[v.pkg] = abs
	}
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte(parityProgram(importBase, fixtures)), 0o644); err != nil {
		t.Fatalf("write program: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	cmd := exec.CommandContext(ctx, goBin, "run", ".")
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("go run: %v\n%s", err, stderr.String())
	}

	var got []observation
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("decode observations: %v\n%s", err, stdout.String())
	}
	byCase := map[string]map[string]observation{}
	for _, o := range got {
		if byCase[o.Case] == nil {
			byCase[o.Case] = map[string]observation{}
		}
		byCase[o.Case][o.Impl] = o
	}

	for _, tc := range parityCases {
		dyn, okDyn := byCase[tc.name]["dynamic"]
		gen, okGen := byCase[tc.name]["generated"]
		if !okDyn || !okGen {
			t.Errorf("%s: missing observations", tc.name)
			continue
		}
		if dyn.URI != gen.URI || dyn.ContentType != gen.ContentType || dyn.Body != gen.Body ||
			dyn.Stage != gen.Stage || dyn.Failed != gen.Failed {
			t.Errorf("%s: clients disagree\ndynamic:   %+v\ngenerated: %+v", tc.name, dyn, gen)
			continue
		}
		if dyn.Failed != tc.wantFailed || dyn.Stage != tc.wantStage {
			t.Errorf("%s: failed=%v stage=%q (%s), want failed=%v stage=%q",
				tc.name, dyn.Failed, dyn.Stage, dyn.Error, tc.wantFailed, tc.wantStage)
		}
		if dyn.URI != tc.wantURI || dyn.ContentType != tc.wantContentType || dyn.Body != tc.wantBody {
			t.Errorf("%s: sent %q %q %q, want %q %q %q",
				tc.name, dyn.URI, dyn.ContentType, dyn.Body, tc.wantURI, tc.wantContentType, tc.wantBody)
		}
	}
}

// parityProgram renders a main package that runs every case through both
// clients against one recording server and prints the observations as JSON.
func parityProgram(importBase string, fixtures map[string]string) string {
	var b strings.Builder
	b.WriteString(`package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"

	"github.com/mark3labs/oasclient/internal/client"
	"github.com/mark3labs/oasclient/internal/spec"
`)
	for _, v := range parityVariants {
		fmt.Fprintf(&b, "\t%s %q\n", v.pkg, importBase+"/"+v.pkg)
	}
	b.WriteString(`)

type observation struct {
	Case        string ` + "`json:\"case\"`" + `
	Impl        string ` + "`json:\"impl\"`" + `
	URI         string ` + "`json:\"uri\"`" + `
	ContentType string ` + "`json:\"contentType\"`" + `
	Body        string ` + "`json:\"body\"`" + `
	Stage       string ` + "`json:\"stage\"`" + `
	Failed      bool   ` + "`json:\"failed\"`" + `
	Error       string ` + "`json:\"error\"`" + `
}

type seen struct{ uri, contentType, body string }

var last = make(chan seen, 1)

func record(w http.ResponseWriter, r *http.Request) {
	s := seen{uri: r.URL.Path}
	if r.URL.RawQuery != "" {
		s.uri += "?" + r.URL.RawQuery
	}
	mt, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	s.contentType = mt
	if strings.HasPrefix(mt, "multipart/") {
		var lines []string
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			data, _ := io.ReadAll(part)
			lines = append(lines, part.FormName()+"|"+part.FileName()+"|"+part.Header.Get("Content-Type")+"|"+string(data))
		}
		sort.Strings(lines)
		s.body = strings.Join(lines, "\n")
	} else {
		data, _ := io.ReadAll(r.Body)
		s.body = string(data)
	}
	last <- s
	w.WriteHeader(http.StatusNoContent)
}

func observe(name, impl string, stage func(error) string, call func(context.Context) error) observation {
	o := observation{Case: name, Impl: impl}
	err := call(context.Background())
	select {
	case s := <-last:
		o.URI, o.ContentType, o.Body = s.uri, s.contentType, s.body
	default:
	}
	if err != nil {
		o.Failed = true
		o.Stage = stage(err)
		o.Error = err.Error()
	}
	return o
}

func dynamicStage(err error) string {
	if ve, ok := client.AsValidationError(err); ok {
		return string(ve.Stage)
	}
	return ""
}

func dynamic(path, baseURL string, validate bool) *client.Client {
	doc, err := spec.Load(context.Background(), path)
	if err != nil {
		panic(err)
	}
	c, err := client.New(context.Background(), doc, client.WithBaseURL(baseURL), client.WithValidation(validate))
	if err != nil {
		panic(err)
	}
	return c
}

`)
	for _, v := range parityVariants {
		if !v.validate {
			fmt.Fprintf(&b, "func %sStage(error) string { return \"\" }\n\n", v.pkg)
			continue
		}
		fmt.Fprintf(&b, `func %[1]sStage(err error) string {
	var (
		q  *%[1]s.QueryValidationError
		p  *%[1]s.ParamsValidationError
		b  *%[1]s.BodyValidationError
		rb *%[1]s.RequestBodyValidationError
	)
	switch {
	case errors.As(err, &q):
		return q.Stage
	case errors.As(err, &p):
		return p.Stage
	case errors.As(err, &b):
		return b.Stage
	case errors.As(err, &rb):
		return rb.Stage
	}
	return ""
}

`, v.pkg)
	}

	b.WriteString(`func main() {
	srv := httptest.NewServer(http.HandlerFunc(record))
	defer srv.Close()

`)
	for _, v := range parityVariants {
		fmt.Fprintf(&b, "\t%[1]sDynamic := dynamic(%[2]q, srv.URL, %[3]v)\n", v.pkg, fixtures[v.pkg], v.validate)
		fmt.Fprintf(&b, "\t%[1]sClient := %[1]s.New(srv.URL)\n", v.pkg)
	}
	b.WriteString("\n\tvar out []observation\n")
	for _, tc := range parityCases {
		dynReq := strings.ReplaceAll(tc.request, "PKG.", "client.")
		genReq := strings.ReplaceAll(tc.request, "PKG.", tc.variant+".")
		fmt.Fprintf(&b, `	out = append(out,
		observe(%[1]q, "dynamic", dynamicStage, func(ctx context.Context) error {
			_, err := %[2]sDynamic.Call(ctx, %[3]q, client.Request{%[4]s})
			return err
		}),
		observe(%[1]q, "generated", %[2]sStage, func(ctx context.Context) error {
			resp, err := %[2]sClient.%[5]s(ctx, %[2]s.Request{%[6]s})
			if resp != nil {
				resp.Body.Close()
			}
			return err
		}),
	)
`, tc.name, tc.variant, tc.op, dynReq, methodName(tc.op), genReq)
	}
	b.WriteString(`
	if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
		panic(err)
	}
}
`)
	return b.String()
}
