package exporter

import (
	"github.com/dave/jennifer/jen"
	"github.com/stoewer/go-strcase"

	"github.com/mark3labs/oasclient/internal/client"
	"github.com/mark3labs/oasclient/internal/opschema"
)

const (
	httpPkg    = "net/http"
	contextPkg = "context"
)

func ctxParams() []jen.Code {
	return []jen.Code{
		jen.Id("ctx").Qual(contextPkg, "Context"),
		jen.Id("req").Id("Request"),
	}
}

func results() []jen.Code {
	return []jen.Code{jen.Op("*").Qual(httpPkg, "Response"), jen.Error()}
}

// emitCore renders Request, Client and New.
func (r *renderer) emitCore(f *jen.File, baseURL string) {
	f.Comment("DefaultBaseURL is the server URL declared by the document.")
	f.Const().Id("DefaultBaseURL").Op("=").Lit(baseURL)

	f.Comment("Request is the input of every operation method.")
	f.Type().Id("Request").Struct(
		jen.Comment("Params fills {name} placeholders of the path."),
		jen.Id("Params").Map(jen.String()).Any(),
		jen.Id("Query").Map(jen.String()).Any(),
		jen.Id("Body").Any(),
		jen.Comment("Headers override Client.Headers; Content-Type selects the body encoding."),
		jen.Id("Headers").Qual(httpPkg, "Header"),
	)

	f.Type().Id("Client").Struct(
		jen.Id("BaseURL").String(),
		jen.Id("Headers").Qual(httpPkg, "Header"),
		jen.Id("HTTPClient").Op("*").Qual(httpPkg, "Client"),
	)

	f.Comment("New returns a Client for baseURL; an empty baseURL uses DefaultBaseURL.")
	f.Func().Id("New").Params(jen.Id("baseURL").String()).Op("*").Id("Client").Block(
		jen.If(jen.Id("baseURL").Op("==").Lit("")).Block(
			jen.Id("baseURL").Op("=").Id("DefaultBaseURL"),
		),
		jen.Return(jen.Op("&").Id("Client").Values(jen.Dict{
			jen.Id("BaseURL"):    jen.Id("baseURL"),
			jen.Id("Headers"):    jen.Qual(httpPkg, "Header").Values(),
			jen.Id("HTTPClient"): jen.Qual(httpPkg, "DefaultClient"),
		})),
	)
}

var stageTypes = []struct {
	stage client.Stage
	name  string
}{
	{client.StageQuery, "QueryValidationError"},
	{client.StageParams, "ParamsValidationError"},
	{client.StageBody, "BodyValidationError"},
	{client.StageRequestBody, "RequestBodyValidationError"},
}

func stageType(stage client.Stage) string {
	for _, st := range stageTypes {
		if st.stage == stage {
			return st.name
		}
	}
	return "ValidationError"
}

// emitValidation renders the engine glue and the stage error types.
func (r *renderer) emitValidation(f *jen.File) {
	f.Comment("ValidationError carries the violations of one validation stage.")
	f.Type().Id("ValidationError").Struct(
		jen.Id("Stage").String(),
		jen.Id("Operation").String(),
		jen.Id("Err").Error(),
	)
	f.Func().Params(jen.Id("e").Op("*").Id("ValidationError")).Id("Error").Params().String().Block(
		jen.Return(jen.Id("e").Dot("Operation").Op("+").Lit(": ").Op("+").Id("e").Dot("Stage").
			Op("+").Lit(" validation failed: ").Op("+").Id("e").Dot("Err").Dot("Error").Call()),
	)
	f.Func().Params(jen.Id("e").Op("*").Id("ValidationError")).Id("Unwrap").Params().Error().Block(
		jen.Return(jen.Id("e").Dot("Err")),
	)
	for _, st := range stageTypes {
		f.Type().Id(st.name).Struct(jen.Id("ValidationError"))
	}

	f.Func().Id("mustSchema").Params(jen.Id("src").String()).Op("*").Qual(kinSchemaPkg, "Schema").Block(
		jen.Id("schema").Op(":=").Op("&").Qual(kinSchemaPkg, "Schema").Values(),
		jen.If(
			jen.Err().Op(":=").Qual("encoding/json", "Unmarshal").Call(jen.Index().Byte().Parens(jen.Id("src")), jen.Id("schema")),
			jen.Err().Op("!=").Nil(),
		).Block(jen.Panic(jen.Err())),
		jen.Return(jen.Id("schema")),
	)

	f.Comment("validate checks value against schema; nil values and nil maps validate as an empty object.")
	f.Func().Id("validate").Params(
		jen.Id("schema").Op("*").Qual(kinSchemaPkg, "Schema"),
		jen.Id("value").Any(),
	).Error().Block(
		jen.If(jen.Id("schema").Op("==").Nil()).Block(jen.Return(jen.Nil())),
		jen.Switch(jen.Id("x").Op(":=").Id("value").Assert(jen.Type())).Block(
			jen.Case(jen.Nil()).Block(
				jen.Id("value").Op("=").Map(jen.String()).Any().Values(),
			),
			jen.Case(jen.Map(jen.String()).Any()).Block(
				jen.If(jen.Id("x").Op("==").Nil()).Block(
					jen.Id("value").Op("=").Map(jen.String()).Any().Values(),
				),
			),
		),
		jen.List(jen.Id("data"), jen.Err()).Op(":=").Qual("encoding/json", "Marshal").Call(jen.Id("value")),
		jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Err())),
		jen.Var().Id("doc").Any(),
		jen.If(
			jen.Err().Op(":=").Qual("encoding/json", "Unmarshal").Call(jen.Id("data"), jen.Op("&").Id("doc")),
			jen.Err().Op("!=").Nil(),
		).Block(jen.Return(jen.Err())),
		jen.Return(jen.Id("schema").Dot("VisitJSON").Call(jen.Id("doc"), jen.Qual(kinSchemaPkg, "MultiErrors").Call())),
	)

	f.Type().Id("requestBody").Struct(
		jen.Id("required").Bool(),
		jen.Id("first").String(),
		jen.Id("schemas").Map(jen.String()).Op("*").Qual(kinSchemaPkg, "Schema"),
	)
	f.Comment("schema returns the schema declared for contentType, else the first declared one.")
	f.Func().Params(jen.Id("rb").Id("requestBody")).Id("schema").Params(jen.Id("contentType").String()).
		Op("*").Qual(kinSchemaPkg, "Schema").Block(
		jen.If(
			jen.List(jen.Id("s"), jen.Id("ok")).Op(":=").Id("rb").Dot("schemas").Index(jen.Id("contentType")),
			jen.Id("ok"),
		).Block(jen.Return(jen.Id("s"))),
		jen.Return(jen.Id("rb").Dot("schemas").Index(jen.Id("rb").Dot("first"))),
	)
}

// emitOperation renders the schema variables and the method of one
// operation.
func (r *renderer) emitOperation(f *jen.File, p planned) error {
	prefix := strcase.LowerCamelCase(p.method)
	id := p.op.OperationID
	var body []jen.Code

	if r.caps[CapValidation] {
		stages := []struct {
			stage    client.Stage
			fragment map[string]any
			field    string
		}{
			{client.StageQuery, p.set.Query, "Query"},
			{client.StageParams, p.set.Path, "Params"},
			{client.StageBody, p.set.Body, "Body"},
		}
		for _, st := range stages {
			if st.fragment == nil {
				continue
			}
			src, err := opschema.MarshalFragment(st.fragment)
			if err != nil {
				return err
			}
			varName := prefix + strcase.UpperCamelCase(string(st.stage)) + "Schema"
			f.Var().Id(varName).Op("=").Id("mustSchema").Call(jen.Lit(string(src)))
			body = append(body, validateStage(jen.Id(varName), jen.Id("req").Dot(st.field), st.stage, id))
		}
	}

	if !p.payload {
		body = append(body, endpoint(p)...)
		body = append(body, jen.Return(jen.Id("c").Dot("do").Call(
			jen.Id("ctx"),
			jen.Lit(string(p.op.Method)),
			jen.Id("u"),
			jen.Id("req").Dot("Headers"),
			jen.Lit(""),
			jen.Id("req").Dot("Body"),
		)))
		r.emitMethod(f, p, body)
		return nil
	}

	body = append(body,
		jen.Id("contentType").Op(":=").Id("req").Dot("Headers").Dot("Get").Call(jen.Lit("Content-Type")),
		jen.If(jen.Id("contentType").Op("==").Lit("")).Block(
			jen.Id("contentType").Op("=").Lit(p.defaultContentType),
		),
	)

	if r.caps[CapValidation] && hasMediaSchema(p) {
		rbVar := prefix + "RequestBody"
		dict := jen.Dict{}
		for _, m := range p.op.RequestBody.Content {
			if m.Schema == nil {
				dict[jen.Lit(m.ContentType)] = jen.Nil()
				continue
			}
			src, err := opschema.MarshalFragment(m.Schema)
			if err != nil {
				return err
			}
			dict[jen.Lit(m.ContentType)] = jen.Id("mustSchema").Call(jen.Lit(string(src)))
		}
		f.Var().Id(rbVar).Op("=").Id("requestBody").Values(jen.Dict{
			jen.Id("required"): jen.Lit(p.op.RequestBody.Required),
			jen.Id("first"):    jen.Lit(p.op.RequestBody.Content[0].ContentType),
			jen.Id("schemas"):  jen.Map(jen.String()).Op("*").Qual(kinSchemaPkg, "Schema").Values(dict),
		})
		body = append(body, jen.If(
			jen.Id("req").Dot("Body").Op("!=").Nil().Op("||").Id(rbVar).Dot("required"),
		).Block(validateStage(jen.Id(rbVar).Dot("schema").Call(jen.Id("contentType")), jen.Id("req").Dot("Body"), client.StageRequestBody, id)))
	}

	body = append(body,
		jen.List(jen.Id("payload"), jen.Id("effective"), jen.Err()).Op(":=").Id("encodeBody").Call(
			jen.Id("req").Dot("Body"), jen.Id("contentType"), jen.Lit(p.xmlRoot),
		),
		jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(
			jen.Nil(),
			jen.Qual("fmt", "Errorf").Call(jen.Lit("%s: encode %s body: %w"), jen.Lit(id), jen.Id("contentType"), jen.Err()),
		)),
	)
	body = append(body, endpoint(p)...)
	body = append(body,
		jen.Return(jen.Id("c").Dot("do").Call(
			jen.Id("ctx"),
			jen.Lit(string(p.op.Method)),
			jen.Id("u"),
			jen.Id("req").Dot("Headers"),
			jen.Id("effective"),
			jen.Id("payload"),
		)),
	)
	r.emitMethod(f, p, body)
	return nil
}

// endpoint renders `u, err := c.endpoint(...)` followed by its error check.
func endpoint(p planned) []jen.Code {
	return []jen.Code{
		jen.List(jen.Id("u"), jen.Err()).Op(":=").Id("c").Dot("endpoint").Call(
			jen.Lit(p.op.OperationID),
			jen.Lit(p.op.Path),
			jen.Id("req").Dot("Params"),
			jen.Id("req").Dot("Query"),
		),
		ifErrReturn(jen.Nil(), jen.Err()),
	}
}

func (r *renderer) emitMethod(f *jen.File, p planned, body []jen.Code) {
	doc := p.method + " calls " + p.op.Key() + "."
	if p.op.Summary != "" {
		doc = p.method + ": " + p.op.Summary
	}
	f.Comment(doc)
	f.Func().Params(jen.Id("c").Op("*").Id("Client")).Id(p.method).Params(ctxParams()...).Params(results()...).Block(body...)
}

// validateStage renders `if err := validate(schema, value); err != nil { return nil, &XValidationError{...} }`.
func validateStage(schema, value jen.Code, stage client.Stage, operationID string) jen.Code {
	return jen.If(
		jen.Err().Op(":=").Id("validate").Call(schema, value),
		jen.Err().Op("!=").Nil(),
	).Block(jen.Return(
		jen.Nil(),
		jen.Op("&").Id(stageType(stage)).Values(jen.Id("ValidationError").Values(jen.Dict{
			jen.Id("Stage"):     jen.Lit(string(stage)),
			jen.Id("Operation"): jen.Lit(operationID),
			jen.Id("Err"):       jen.Err(),
		})),
	))
}

func hasMediaSchema(p planned) bool {
	if p.op.RequestBody == nil {
		return false
	}
	for _, m := range p.op.RequestBody.Content {
		if m.Schema != nil {
			return true
		}
	}
	return false
}

// emitAPI renders the API interface and its assertion on *Client.
func (r *renderer) emitAPI(f *jen.File, plan []planned) {
	methods := make([]jen.Code, 0, len(plan))
	for _, p := range plan {
		methods = append(methods, jen.Id(p.method).Params(ctxParams()...).Params(results()...))
	}
	f.Comment("API lists every operation of the document.")
	f.Type().Id("API").Interface(methods...)
	f.Var().Id("_").Id("API").Op("=").Parens(jen.Op("*").Id("Client")).Parens(jen.Nil())
}
