package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mark3labs/oasclient/internal/client"
	"github.com/mark3labs/oasclient/internal/spec"
)

// CallConfig captures the inputs of one dynamic invocation.
type CallConfig struct {
	Input       string
	OperationID string
	Method      string
	Path        string
	Params      []string
	Query       []string
	Headers     []string
	Fields      []string
	Data        string
	BaseURL     string
	ConfigPath  string
	Validate    bool
	StrictRefs  bool
	Verbose     bool
	OperationFilters

	stdout io.Writer
	logger zerolog.Logger
}

func defaultCallConfig() CallConfig {
	return CallConfig{Validate: true, stdout: os.Stdout, logger: zerolog.Nop()}
}

var callRunner = runCall

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Invoke one operation of an OpenAPI/Swagger document",
		Long: "Invoke one operation, addressed by operationId or by method and path template. " +
			"Parameter values are converted to the types their schemas declare before validation.",
		Example: strings.TrimSpace(`  oasclient call -i petstore.yaml --operation getPetById --param petId=12
  oasclient call -i petstore.yaml --method post --path /pet --data '{"name":"doggie","photoUrls":[]}'
  oasclient call -i petstore.yaml --operation uploadFile --param petId=1 --field file=@dog.png`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveCallConfig(cmd)
			if err != nil {
				return err
			}
			cfg.stdout = cmd.OutOrStdout()
			cfg.logger = commandLogger(cmd, cfg.Verbose)
			return callRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("input", "i", "", "Path or URL to the Swagger/OpenAPI document")
	flags.String("operation", "", "operationId to invoke")
	flags.String("method", "", "HTTP method (with --path)")
	flags.String("path", "", "Path template as declared, e.g. /pet/{petId} (with --method)")
	flags.StringArray("param", nil, "Path parameter name=value (repeatable)")
	flags.StringArray("query", nil, "Query parameter name=value (repeatable)")
	flags.StringArrayP("header", "H", nil, "Header 'Name: value' (repeatable)")
	flags.StringArray("field", nil, "Body field name=value, or name=@file for uploads (repeatable)")
	flags.StringP("data", "d", "", "Request body as JSON, or @file")
	flags.String("base-url", "", "Override the document's server URL")
	flags.Bool("no-validate", false, "Skip request validation")
	flags.Bool("strict-refs", false, "Fail on unresolved $ref instead of substituting an empty schema")
	addFilterFlags(flags)

	return cmd
}

func resolveCallConfig(cmd *cobra.Command) (*CallConfig, error) {
	cfg := defaultCallConfig()
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	if configPath = strings.TrimSpace(configPath); configPath != "" {
		cfg.ConfigPath = configPath
		fc, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		for _, apply := range []func() error{
			func() error { return fc.str("input", &cfg.Input) },
			func() error { return fc.str("baseurl", &cfg.BaseURL) },
			func() error { return fc.list("headers", &cfg.Headers) },
			func() error { return fc.boolean("validate", &cfg.Validate) },
			func() error { return fc.boolean("strictrefs", &cfg.StrictRefs) },
			func() error { return fc.boolean("verbose", &cfg.Verbose) },
		} {
			if err := apply(); err != nil {
				return nil, err
			}
		}
		if err := cfg.OperationFilters.applyFile(fc); err != nil {
			return nil, err
		}
	}

	if err := applyCallFlagOverrides(flags, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyCallFlagOverrides(flags *pflag.FlagSet, cfg *CallConfig) error {
	strs := map[string]*string{
		"input":     &cfg.Input,
		"operation": &cfg.OperationID,
		"method":    &cfg.Method,
		"path":      &cfg.Path,
		"data":      &cfg.Data,
		"base-url":  &cfg.BaseURL,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(value)
	}

	arrays := map[string]*[]string{
		"param": &cfg.Params,
		"query": &cfg.Query,
		"field": &cfg.Fields,
	}
	for name, dst := range arrays {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetStringArray(name)
		if err != nil {
			return err
		}
		*dst = value
	}
	// Header flags add to headers from the config file.
	if flags.Changed("header") {
		value, err := flags.GetStringArray("header")
		if err != nil {
			return err
		}
		cfg.Headers = append(cfg.Headers, value...)
	}

	if flags.Changed("no-validate") {
		value, err := flags.GetBool("no-validate")
		if err != nil {
			return err
		}
		cfg.Validate = !value
	}
	if flags.Changed("strict-refs") {
		value, err := flags.GetBool("strict-refs")
		if err != nil {
			return err
		}
		cfg.StrictRefs = value
	}
	if flags.Changed("verbose") {
		value, err := flags.GetBool("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = value
	}
	return cfg.OperationFilters.applyFlags(flags)
}

func (c *CallConfig) validate() error {
	if c.Input == "" {
		return newUsageError("call: --input is required (set via flag or config file)")
	}
	byID := c.OperationID != ""
	byRoute := c.Method != "" || c.Path != ""
	switch {
	case byID && byRoute:
		return newUsageError("call: use either --operation or --method/--path, not both")
	case !byID && (c.Method == "" || c.Path == ""):
		return newUsageError("call: --operation or both --method and --path are required")
	case c.Method != "" && !spec.IsMethod(strings.ToLower(c.Method)):
		return newUsageError(fmt.Sprintf("call: unsupported --method %q", c.Method))
	}
	if c.Data != "" && len(c.Fields) > 0 {
		return newUsageError("call: use either --data or --field, not both")
	}
	return c.OperationFilters.validate("call")
}

func runCall(ctx context.Context, cfg *CallConfig) error {
	log := cfg.logger

	doc, err := spec.Load(ctx, cfg.Input)
	if err != nil {
		return documentError(err)
	}

	opts := []client.Option{
		client.WithLogger(log),
		client.WithValidation(cfg.Validate),
		client.WithStrictRefs(cfg.StrictRefs),
		client.WithIncludeTags(cfg.IncludeTags),
		client.WithExcludeTags(cfg.ExcludeTags),
		client.WithMethods(cfg.methods()),
		client.WithPathPatterns(cfg.PathPatterns),
		client.WithPathGlobs(cfg.PathGlobs),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, client.WithBaseURL(cfg.BaseURL))
	}
	c, err := client.New(ctx, doc, opts...)
	if err != nil {
		return documentError(err)
	}

	var (
		inv *client.Invoker
		ok  bool
	)
	if cfg.OperationID != "" {
		inv, ok = c.ByID(cfg.OperationID)
	} else {
		inv, ok = c.Operation(cfg.Method, cfg.Path)
	}
	if !ok {
		target := cfg.OperationID
		if target == "" {
			target = strings.ToUpper(cfg.Method) + " " + cfg.Path
		}
		return wrapUsage(fmt.Sprintf("call: no operation %s in %s", target, doc.Location), client.ErrUnknownOperation)
	}

	req, err := buildCallRequest(inv, cfg)
	if err != nil {
		return err
	}
	resp, err := inv.Invoke(ctx, req)
	if err != nil {
		return fmt.Errorf("call: %w", err)
	}
	log.Debug().Int("status", resp.Status).Int("bytes", len(resp.Body)).Msg("response received")
	return printResponse(cfg.stdout, resp.Status, resp.Header, resp.Body)
}

func buildCallRequest(inv *client.Invoker, cfg *CallConfig) (client.Request, error) {
	set := inv.Schemas()
	var req client.Request
	var err error

	if req.Params, err = parsePairs("param", cfg.Params, set.Path); err != nil {
		return req, err
	}
	if req.Query, err = parsePairs("query", cfg.Query, set.Query); err != nil {
		return req, err
	}
	if req.Headers, err = parseHeaders(cfg.Headers); err != nil {
		return req, err
	}

	switch {
	case cfg.Data != "":
		req.Body, err = parseData(cfg.Data)
	case len(cfg.Fields) > 0:
		req.Body, err = parseFields(cfg.Fields, bodySchema(inv, req.Headers.Get("Content-Type")))
	}
	return req, err
}

// bodySchema is the fragment that types --field values: the synthesized
// legacy body, else the request body schema the call will use.
func bodySchema(inv *client.Invoker, contentType string) map[string]any {
	if set := inv.Schemas(); set.Body != nil {
		return set.Body
	}
	rb := inv.Operation().RequestBody
	if rb == nil {
		return nil
	}
	if m, ok := rb.Media(inv.ContentType(contentType)); ok {
		return m.Schema
	}
	if len(rb.Content) > 0 {
		return rb.Content[0].Schema
	}
	return nil
}

func parsePairs(flag string, pairs []string, fragment map[string]any) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, newUsageError(fmt.Sprintf("call: --%s %q must be name=value", flag, pair))
		}
		addPair(out, name, coerce(raw, propertySchema(fragment, name)))
	}
	return out, nil
}

// addPair stores value under name; a repeated name collects its values in
// order.
func addPair(out map[string]any, name string, value any) {
	prev, exists := out[name]
	if !exists {
		out[name] = value
		return
	}
	list, isList := prev.([]any)
	if !isList {
		list = []any{prev}
	}
	if more, ok := value.([]any); ok {
		out[name] = append(list, more...)
		return
	}
	out[name] = append(list, value)
}

func parseFields(fields []string, fragment map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for _, field := range fields {
		name, raw, ok := strings.Cut(field, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, newUsageError(fmt.Sprintf("call: --field %q must be name=value", field))
		}
		if path, isFile := strings.CutPrefix(raw, "@"); isFile {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, newUsageError(fmt.Sprintf("call: --field %s: %v", name, err))
			}
			addPair(out, name, client.File{
				Name:        filepath.Base(path),
				ContentType: mime.TypeByExtension(filepath.Ext(path)),
				Content:     bytes.NewReader(data),
			})
			continue
		}
		addPair(out, name, coerce(raw, propertySchema(fragment, name)))
	}
	return out, nil
}

func parseHeaders(lines []string) (http.Header, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	h := http.Header{}
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, newUsageError(fmt.Sprintf("call: header %q must be 'Name: value'", line))
		}
		h.Add(name, strings.TrimSpace(value))
	}
	return h, nil
}

// parseData reads --data. JSON text is decoded so it validates and encodes
// like a structured body; anything else is sent as a string.
func parseData(data string) (any, error) {
	if path, isFile := strings.CutPrefix(data, "@"); isFile {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, newUsageError(fmt.Sprintf("call: --data: %v", err))
		}
		data = string(raw)
	}
	var v any
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return data, nil
	}
	return v, nil
}

func propertySchema(fragment map[string]any, name string) map[string]any {
	return spec.Map(spec.Map(fragment, "properties"), name)
}

// coerce converts a command-line string to the type its schema declares.
// Values that do not parse stay strings and are reported by validation.
func coerce(raw string, schema map[string]any) any {
	switch schemaType(schema) {
	case "integer":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case "number":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case "boolean":
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	case "array":
		items := spec.Map(schema, "items")
		parts := strings.Split(raw, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			out = append(out, coerce(p, items))
		}
		return out
	case "object":
		var v map[string]any
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v
		}
	}
	return raw
}

// schemaType returns the declared type; for a type list the first non-null
// entry.
func schemaType(schema map[string]any) string {
	switch t := schema["type"].(type) {
	case string:
		return t
	case []any:
		for _, item := range t {
			if s, _ := item.(string); s != "" && s != "null" {
				return s
			}
		}
	}
	return ""
}

func printResponse(w io.Writer, status int, header http.Header, body []byte) error {
	if _, err := fmt.Fprintf(w, "HTTP %d %s\n", status, http.StatusText(status)); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	var out bytes.Buffer
	if strings.Contains(header.Get("Content-Type"), "json") && json.Indent(&out, body, "", "  ") == nil {
		body = out.Bytes()
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if !bytes.HasSuffix(body, []byte("\n")) {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}
