package exporter

import (
	"github.com/dave/jennifer/jen"
)

const (
	bytesPkg     = "bytes"
	ioPkg        = "io"
	jsonPkg      = "encoding/json"
	stringsPkg   = "strings"
	urlPkg       = "net/url"
	multipartPkg = "mime/multipart"
	xmlPkg       = "encoding/xml"
)

func ifErrReturn(values ...jen.Code) jen.Code {
	return jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(values...))
}

// emitEncoders renders dispatch, URL building and the body encoders the
// manifest calls for.
func (r *renderer) emitEncoders(f *jen.File) {
	r.emitDo(f)
	r.emitURL(f)
	r.emitFormatValue(f)
	r.emitEncodeBody(f)
	if r.caps[CapMultipart] || r.caps[CapURLEncoded] {
		emitFields(f)
	}
	if r.caps[CapMultipart] {
		emitMultipart(f)
	}
	if r.caps[CapURLEncoded] {
		f.Func().Id("encodeForm").Params(jen.Id("body").Any()).Params(jen.String(), jen.Error()).Block(
			jen.List(jen.Id("m"), jen.Err()).Op(":=").Id("fields").Call(jen.Id("body")),
			ifErrReturn(jen.Lit(""), jen.Err()),
			jen.Id("values").Op(":=").Qual(urlPkg, "Values").Values(),
			jen.For(jen.List(jen.Id("k"), jen.Id("v")).Op(":=").Range().Id("m")).Block(
				jen.If(
					jen.Err().Op(":=").Id("addValues").Call(jen.Id("values"), jen.Id("k"), jen.Id("v")),
					jen.Err().Op("!=").Nil(),
				).Block(jen.Return(jen.Lit(""), jen.Qual("fmt", "Errorf").Call(jen.Lit("field %q: %w"), jen.Id("k"), jen.Err()))),
			),
			jen.Return(jen.Id("values").Dot("Encode").Call(), jen.Nil()),
		)
	}
	if r.caps[CapXML] {
		emitXML(f)
	}
	if r.caps[CapMultipart] || r.caps[CapXML] {
		f.Func().Id("sortedKeys").Params(jen.Id("m").Map(jen.String()).Any()).Index().String().Block(
			jen.Id("keys").Op(":=").Make(jen.Index().String(), jen.Lit(0), jen.Len(jen.Id("m"))),
			jen.For(jen.Id("k").Op(":=").Range().Id("m")).Block(
				jen.Id("keys").Op("=").Append(jen.Id("keys"), jen.Id("k")),
			),
			jen.Qual("sort", "Strings").Call(jen.Id("keys")),
			jen.Return(jen.Id("keys")),
		)
	}
}

// emitDo renders the single dispatch point: header merge (client defaults
// < request headers < resolved Content-Type) and the JSON fallback for
// structured bodies.
func (r *renderer) emitDo(f *jen.File) {
	f.Func().Params(jen.Id("c").Op("*").Id("Client")).Id("do").Params(
		jen.Id("ctx").Qual(contextPkg, "Context"),
		jen.List(jen.Id("method"), jen.Id("u")).String(),
		jen.Id("headers").Qual(httpPkg, "Header"),
		jen.Id("contentType").String(),
		jen.Id("body").Any(),
	).Params(results()...).Block(
		jen.Var().Id("reader").Qual(ioPkg, "Reader"),
		jen.Switch(jen.Id("b").Op(":=").Id("body").Assert(jen.Type())).Block(
			jen.Case(jen.Nil()).Block(),
			jen.Case(jen.Index().Byte()).Block(
				jen.Id("reader").Op("=").Qual(bytesPkg, "NewReader").Call(jen.Id("b")),
			),
			jen.Case(jen.String()).Block(
				jen.Id("reader").Op("=").Qual(stringsPkg, "NewReader").Call(jen.Id("b")),
			),
			jen.Case(jen.Qual(ioPkg, "Reader")).Block(
				jen.Id("reader").Op("=").Id("b"),
			),
			jen.Default().Block(
				jen.List(jen.Id("data"), jen.Err()).Op(":=").Qual(jsonPkg, "Marshal").Call(jen.Id("b")),
				ifErrReturn(jen.Nil(), jen.Err()),
				jen.Id("reader").Op("=").Qual(bytesPkg, "NewReader").Call(jen.Id("data")),
				jen.If(jen.Id("contentType").Op("==").Lit("")).Block(
					jen.Id("contentType").Op("=").Lit("application/json"),
				),
			),
		),
		jen.List(jen.Id("httpReq"), jen.Err()).Op(":=").Qual(httpPkg, "NewRequestWithContext").Call(
			jen.Id("ctx"), jen.Qual(stringsPkg, "ToUpper").Call(jen.Id("method")), jen.Id("u"), jen.Id("reader"),
		),
		ifErrReturn(jen.Nil(), jen.Err()),
		jen.For(jen.List(jen.Id("k"), jen.Id("vs")).Op(":=").Range().Id("c").Dot("Headers")).Block(
			jen.Id("httpReq").Dot("Header").Index(jen.Id("k")).Op("=").Append(jen.Index().String().Parens(jen.Nil()), jen.Id("vs").Op("...")),
		),
		jen.For(jen.List(jen.Id("k"), jen.Id("vs")).Op(":=").Range().Id("headers")).Block(
			jen.Id("httpReq").Dot("Header").Index(jen.Qual(httpPkg, "CanonicalHeaderKey").Call(jen.Id("k"))).
				Op("=").Append(jen.Index().String().Parens(jen.Nil()), jen.Id("vs").Op("...")),
		),
		jen.If(jen.Id("contentType").Op("!=").Lit("")).Block(
			jen.Id("httpReq").Dot("Header").Dot("Set").Call(jen.Lit("Content-Type"), jen.Id("contentType")),
		),
		jen.Id("hc").Op(":=").Id("c").Dot("HTTPClient"),
		jen.If(jen.Id("hc").Op("==").Nil()).Block(
			jen.Id("hc").Op("=").Qual(httpPkg, "DefaultClient"),
		),
		jen.Return(jen.Id("hc").Dot("Do").Call(jen.Id("httpReq"))),
	)
}

func (r *renderer) emitURL(f *jen.File) {
	f.Comment("endpoint builds the request URL of one operation call.")
	f.Func().Params(jen.Id("c").Op("*").Id("Client")).Id("endpoint").Params(
		jen.List(jen.Id("operation"), jen.Id("template")).String(),
		jen.List(jen.Id("params"), jen.Id("query")).Map(jen.String()).Any(),
	).Params(jen.String(), jen.Error()).Block(
		jen.List(jen.Id("path"), jen.Err()).Op(":=").Id("buildPath").Call(jen.Id("template"), jen.Id("params")),
		ifErrReturn(jen.Lit(""), jen.Qual("fmt", "Errorf").Call(jen.Lit("%s: build path: %w"), jen.Id("operation"), jen.Err())),
		jen.Id("u").Op(":=").Id("joinURL").Call(jen.Id("c").Dot("BaseURL"), jen.Id("path")),
		jen.List(jen.Id("q"), jen.Err()).Op(":=").Id("buildQuery").Call(jen.Id("query")),
		ifErrReturn(jen.Lit(""), jen.Qual("fmt", "Errorf").Call(jen.Lit("%s: build query: %w"), jen.Id("operation"), jen.Err())),
		jen.If(jen.Id("q").Op("!=").Lit("")).Block(
			jen.Id("u").Op("+=").Lit("?").Op("+").Id("q"),
		),
		jen.Return(jen.Id("u"), jen.Nil()),
	)

	f.Func().Id("joinURL").Params(jen.List(jen.Id("base"), jen.Id("path")).String()).String().Block(
		jen.If(jen.Id("base").Op("==").Lit("")).Block(jen.Return(jen.Id("path"))),
		jen.Return(jen.Qual(stringsPkg, "TrimRight").Call(jen.Id("base"), jen.Lit("/")).Op("+").Lit("/").Op("+").
			Qual(stringsPkg, "TrimLeft").Call(jen.Id("path"), jen.Lit("/"))),
	)

	f.Comment("buildPath substitutes {name} placeholders; names missing from params stay as written.")
	f.Func().Id("buildPath").Params(jen.Id("template").String(), jen.Id("params").Map(jen.String()).Any()).Params(jen.String(), jen.Error()).Block(
		jen.For(jen.List(jen.Id("name"), jen.Id("v")).Op(":=").Range().Id("params")).Block(
			jen.List(jen.Id("s"), jen.Err()).Op(":=").Id("formatValue").Call(jen.Id("v")),
			ifErrReturn(jen.Lit(""), jen.Qual("fmt", "Errorf").Call(jen.Lit("parameter %q: %w"), jen.Id("name"), jen.Err())),
			jen.Id("template").Op("=").Qual(stringsPkg, "ReplaceAll").Call(
				jen.Id("template"),
				jen.Lit("{").Op("+").Id("name").Op("+").Lit("}"),
				jen.Qual(urlPkg, "PathEscape").Call(jen.Id("s")),
			),
		),
		jen.Return(jen.Id("template"), jen.Nil()),
	)

	f.Func().Id("buildQuery").Params(jen.Id("query").Map(jen.String()).Any()).Params(jen.String(), jen.Error()).Block(
		jen.If(jen.Len(jen.Id("query")).Op("==").Lit(0)).Block(jen.Return(jen.Lit(""), jen.Nil())),
		jen.Id("values").Op(":=").Qual(urlPkg, "Values").Values(),
		jen.For(jen.List(jen.Id("k"), jen.Id("v")).Op(":=").Range().Id("query")).Block(
			jen.If(
				jen.Err().Op(":=").Id("addValues").Call(jen.Id("values"), jen.Id("k"), jen.Id("v")),
				jen.Err().Op("!=").Nil(),
			).Block(jen.Return(jen.Lit(""), jen.Qual("fmt", "Errorf").Call(jen.Lit("query %q: %w"), jen.Id("k"), jen.Err()))),
		),
		jen.Return(jen.Id("values").Dot("Encode").Call(), jen.Nil()),
	)

	f.Func().Id("addValues").Params(
		jen.Id("values").Qual(urlPkg, "Values"),
		jen.Id("key").String(),
		jen.Id("v").Any(),
	).Error().Block(
		jen.Switch(jen.Id("x").Op(":=").Id("v").Assert(jen.Type())).Block(
			jen.Case(jen.Index().Any()).Block(
				jen.For(jen.List(jen.Id("_"), jen.Id("item")).Op(":=").Range().Id("x")).Block(
					jen.List(jen.Id("s"), jen.Err()).Op(":=").Id("formatValue").Call(jen.Id("item")),
					ifErrReturn(jen.Err()),
					jen.Id("values").Dot("Add").Call(jen.Id("key"), jen.Id("s")),
				),
			),
			jen.Case(jen.Index().String()).Block(
				jen.For(jen.List(jen.Id("_"), jen.Id("item")).Op(":=").Range().Id("x")).Block(
					jen.Id("values").Dot("Add").Call(jen.Id("key"), jen.Id("item")),
				),
			),
			jen.Default().Block(
				jen.List(jen.Id("s"), jen.Err()).Op(":=").Id("formatValue").Call(jen.Id("x")),
				ifErrReturn(jen.Err()),
				jen.Id("values").Dot("Add").Call(jen.Id("key"), jen.Id("s")),
			),
		),
		jen.Return(jen.Nil()),
	)
}

func (r *renderer) emitFormatValue(f *jen.File) {
	ok := func(v jen.Code) jen.Code { return jen.Return(v, jen.Nil()) }
	cases := []jen.Code{
		jen.Case(jen.Nil()).Block(ok(jen.Lit(""))),
		jen.Case(jen.String()).Block(ok(jen.Id("x"))),
		jen.Case(jen.Bool()).Block(ok(jen.Qual("strconv", "FormatBool").Call(jen.Id("x")))),
		jen.Case(jen.Float64()).Block(ok(
			jen.Qual("strconv", "FormatFloat").Call(jen.Id("x"), jen.LitRune('f'), jen.Lit(-1), jen.Lit(64)),
		)),
		jen.Case(jen.Float32()).Block(ok(
			jen.Qual("strconv", "FormatFloat").Call(jen.Float64().Call(jen.Id("x")), jen.LitRune('f'), jen.Lit(-1), jen.Lit(32)),
		)),
		jen.Case(jen.Int(), jen.Int8(), jen.Int16(), jen.Int32(), jen.Int64(),
			jen.Uint(), jen.Uint8(), jen.Uint16(), jen.Uint32(), jen.Uint64()).Block(
			ok(jen.Qual("fmt", "Sprint").Call(jen.Id("x"))),
		),
	}
	if r.caps[CapMultipart] {
		cases = append(cases, jen.Case(jen.Id("File")).Block(ok(jen.Id("x").Dot("Name"))))
	}
	cases = append(cases,
		jen.Case(jen.Qual("fmt", "Stringer")).Block(ok(jen.Id("x").Dot("String").Call())),
		jen.Default().Block(
			jen.List(jen.Id("data"), jen.Err()).Op(":=").Qual(jsonPkg, "Marshal").Call(jen.Id("x")),
			ifErrReturn(jen.Lit(""), jen.Err()),
			ok(jen.String().Parens(jen.Id("data"))),
		),
	)
	f.Comment("formatValue renders a value for a path segment, query value or form field.")
	f.Func().Id("formatValue").Params(jen.Id("v").Any()).Params(jen.String(), jen.Error()).Block(
		jen.Switch(jen.Id("x").Op(":=").Id("v").Assert(jen.Type())).Block(cases...),
	)
}

// emitEncodeBody renders the content-type switch. Encodings no operation
// declares are left out, and those bodies pass through unchanged.
func (r *renderer) emitEncodeBody(f *jen.File) {
	var cases []jen.Code
	if r.caps[CapMultipart] {
		cases = append(cases, jen.Case(jen.Id("mt").Op("==").Lit("multipart/form-data")).Block(
			jen.Return(jen.Id("encodeMultipart").Call(jen.Id("body"))),
		))
	}
	if r.caps[CapURLEncoded] {
		cases = append(cases, jen.Case(jen.Id("mt").Op("==").Lit("application/x-www-form-urlencoded")).Block(
			jen.List(jen.Id("form"), jen.Err()).Op(":=").Id("encodeForm").Call(jen.Id("body")),
			jen.Return(jen.Id("form"), jen.Id("contentType"), jen.Err()),
		))
	}
	if r.caps[CapXML] {
		cases = append(cases, jen.Case(
			jen.Qual(stringsPkg, "HasSuffix").Call(jen.Id("mt"), jen.Lit("/xml")).Op("||").
				Qual(stringsPkg, "HasSuffix").Call(jen.Id("mt"), jen.Lit("+xml")),
		).Block(
			jen.List(jen.Id("data"), jen.Err()).Op(":=").Id("encodeXML").Call(jen.Id("xmlRoot"), jen.Id("body")),
			jen.Return(jen.Id("data"), jen.Id("contentType"), jen.Err()),
		))
	}

	stmts := []jen.Code{
		jen.If(jen.Id("body").Op("==").Nil()).Block(jen.Return(jen.Nil(), jen.Id("contentType"), jen.Nil())),
	}
	if len(cases) > 0 {
		stmts = append(stmts,
			jen.List(jen.Id("mt"), jen.Id("_"), jen.Id("_")).Op(":=").Qual(stringsPkg, "Cut").Call(jen.Id("contentType"), jen.Lit(";")),
			jen.Id("mt").Op("=").Qual(stringsPkg, "ToLower").Call(jen.Qual(stringsPkg, "TrimSpace").Call(jen.Id("mt"))),
			jen.Switch().Block(cases...),
		)
	}
	stmts = append(stmts, jen.Return(jen.Id("body"), jen.Id("contentType"), jen.Nil()))

	f.Comment("encodeBody returns the wire body and the effective content type.")
	f.Func().Id("encodeBody").Params(
		jen.Id("body").Any(),
		jen.List(jen.Id("contentType"), jen.Id("xmlRoot")).String(),
	).Params(jen.Any(), jen.String(), jen.Error()).Block(stmts...)
}

func emitFields(f *jen.File) {
	f.Func().Id("fields").Params(jen.Id("body").Any()).Params(jen.Map(jen.String()).Any(), jen.Error()).Block(
		jen.If(jen.List(jen.Id("m"), jen.Id("ok")).Op(":=").Id("body").Assert(jen.Map(jen.String()).Any()), jen.Id("ok")).Block(
			jen.Return(jen.Id("m"), jen.Nil()),
		),
		jen.List(jen.Id("data"), jen.Err()).Op(":=").Qual(jsonPkg, "Marshal").Call(jen.Id("body")),
		ifErrReturn(jen.Nil(), jen.Err()),
		jen.Var().Id("m").Map(jen.String()).Any(),
		jen.If(
			jen.Err().Op(":=").Qual(jsonPkg, "Unmarshal").Call(jen.Id("data"), jen.Op("&").Id("m")),
			jen.Err().Op("!=").Nil(),
		).Block(jen.Return(jen.Nil(), jen.Err())),
		jen.Return(jen.Id("m"), jen.Nil()),
	)
}

func emitMultipart(f *jen.File) {
	f.Comment("File is a multipart file part.")
	f.Type().Id("File").Struct(
		jen.List(jen.Id("Name"), jen.Id("ContentType")).String(),
		jen.Id("Content").Qual(ioPkg, "Reader"),
	)
	f.Comment("MarshalJSON lets a File validate as its name.")
	f.Func().Params(jen.Id("f").Id("File")).Id("MarshalJSON").Params().Params(jen.Index().Byte(), jen.Error()).Block(
		jen.Return(jen.Qual(jsonPkg, "Marshal").Call(jen.Id("f").Dot("Name"))),
	)

	f.Func().Id("encodeMultipart").Params(jen.Id("body").Any()).Params(jen.Any(), jen.String(), jen.Error()).Block(
		jen.List(jen.Id("m"), jen.Err()).Op(":=").Id("fields").Call(jen.Id("body")),
		ifErrReturn(jen.Nil(), jen.Lit(""), jen.Err()),
		jen.Var().Id("buf").Qual(bytesPkg, "Buffer"),
		jen.Id("w").Op(":=").Qual(multipartPkg, "NewWriter").Call(jen.Op("&").Id("buf")),
		jen.For(jen.List(jen.Id("_"), jen.Id("k")).Op(":=").Range().Id("sortedKeys").Call(jen.Id("m"))).Block(
			jen.If(
				jen.Err().Op(":=").Id("writePart").Call(jen.Id("w"), jen.Id("k"), jen.Id("m").Index(jen.Id("k"))),
				jen.Err().Op("!=").Nil(),
			).Block(jen.Return(jen.Nil(), jen.Lit(""), jen.Qual("fmt", "Errorf").Call(jen.Lit("field %q: %w"), jen.Id("k"), jen.Err()))),
		),
		jen.If(jen.Err().Op(":=").Id("w").Dot("Close").Call(), jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Nil(), jen.Lit(""), jen.Err()),
		),
		jen.Return(jen.Id("buf").Dot("Bytes").Call(), jen.Id("w").Dot("FormDataContentType").Call(), jen.Nil()),
	)

	f.Func().Id("writePart").Params(
		jen.Id("w").Op("*").Qual(multipartPkg, "Writer"),
		jen.Id("key").String(),
		jen.Id("v").Any(),
	).Error().Block(
		jen.Switch(jen.Id("x").Op(":=").Id("v").Assert(jen.Type())).Block(
			jen.Case(jen.Id("File")).Block(
				jen.Id("h").Op(":=").Make(jen.Qual("net/textproto", "MIMEHeader")),
				jen.Id("h").Dot("Set").Call(jen.Lit("Content-Disposition"), jen.Qual("fmt", "Sprintf").Call(
					jen.Lit("form-data; name=%q; filename=%q"), jen.Id("key"), jen.Id("x").Dot("Name"),
				)),
				jen.Id("ct").Op(":=").Id("x").Dot("ContentType"),
				jen.If(jen.Id("ct").Op("==").Lit("")).Block(jen.Id("ct").Op("=").Lit("application/octet-stream")),
				jen.Id("h").Dot("Set").Call(jen.Lit("Content-Type"), jen.Id("ct")),
				jen.List(jen.Id("part"), jen.Err()).Op(":=").Id("w").Dot("CreatePart").Call(jen.Id("h")),
				jen.If(jen.Err().Op("!=").Nil().Op("||").Id("x").Dot("Content").Op("==").Nil()).Block(jen.Return(jen.Err())),
				jen.List(jen.Id("_"), jen.Err()).Op("=").Qual(ioPkg, "Copy").Call(jen.Id("part"), jen.Id("x").Dot("Content")),
				jen.Return(jen.Err()),
			),
			jen.Case(jen.Op("*").Id("File")).Block(
				jen.Return(jen.Id("writePart").Call(jen.Id("w"), jen.Id("key"), jen.Op("*").Id("x"))),
			),
			jen.Case(jen.Index().Any()).Block(
				jen.For(jen.List(jen.Id("_"), jen.Id("item")).Op(":=").Range().Id("x")).Block(
					jen.If(
						jen.Err().Op(":=").Id("writePart").Call(jen.Id("w"), jen.Id("key"), jen.Id("item")),
						jen.Err().Op("!=").Nil(),
					).Block(jen.Return(jen.Err())),
				),
				jen.Return(jen.Nil()),
			),
			jen.Case(jen.Index().String()).Block(
				jen.For(jen.List(jen.Id("_"), jen.Id("item")).Op(":=").Range().Id("x")).Block(
					jen.If(
						jen.Err().Op(":=").Id("w").Dot("WriteField").Call(jen.Id("key"), jen.Id("item")),
						jen.Err().Op("!=").Nil(),
					).Block(jen.Return(jen.Err())),
				),
				jen.Return(jen.Nil()),
			),
			jen.Default().Block(
				jen.List(jen.Id("s"), jen.Err()).Op(":=").Id("formatValue").Call(jen.Id("x")),
				ifErrReturn(jen.Err()),
				jen.Return(jen.Id("w").Dot("WriteField").Call(jen.Id("key"), jen.Id("s"))),
			),
		),
	)
}

func emitXML(f *jen.File) {
	f.Comment("encodeXML writes body under a single root element, members in key order.")
	f.Func().Id("encodeXML").Params(jen.Id("root").String(), jen.Id("body").Any()).Params(jen.Index().Byte(), jen.Error()).Block(
		jen.List(jen.Id("data"), jen.Err()).Op(":=").Qual(jsonPkg, "Marshal").Call(jen.Id("body")),
		ifErrReturn(jen.Nil(), jen.Err()),
		jen.Var().Id("v").Any(),
		jen.If(
			jen.Err().Op(":=").Qual(jsonPkg, "Unmarshal").Call(jen.Id("data"), jen.Op("&").Id("v")),
			jen.Err().Op("!=").Nil(),
		).Block(jen.Return(jen.Nil(), jen.Err())),
		jen.Var().Id("buf").Qual(bytesPkg, "Buffer"),
		jen.Id("buf").Dot("WriteString").Call(jen.Qual(xmlPkg, "Header")),
		jen.Id("enc").Op(":=").Qual(xmlPkg, "NewEncoder").Call(jen.Op("&").Id("buf")),
		jen.If(jen.Err().Op(":=").Id("writeXML").Call(jen.Id("enc"), jen.Id("root"), jen.Id("v")), jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Nil(), jen.Err()),
		),
		jen.If(jen.Err().Op(":=").Id("enc").Dot("Flush").Call(), jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Nil(), jen.Err()),
		),
		jen.Return(jen.Id("buf").Dot("Bytes").Call(), jen.Nil()),
	)

	f.Func().Id("writeXML").Params(
		jen.Id("enc").Op("*").Qual(xmlPkg, "Encoder"),
		jen.Id("name").String(),
		jen.Id("v").Any(),
	).Error().Block(
		jen.If(jen.List(jen.Id("items"), jen.Id("ok")).Op(":=").Id("v").Assert(jen.Index().Any()), jen.Id("ok")).Block(
			jen.For(jen.List(jen.Id("_"), jen.Id("item")).Op(":=").Range().Id("items")).Block(
				jen.If(
					jen.Err().Op(":=").Id("writeXML").Call(jen.Id("enc"), jen.Id("name"), jen.Id("item")),
					jen.Err().Op("!=").Nil(),
				).Block(jen.Return(jen.Err())),
			),
			jen.Return(jen.Nil()),
		),
		jen.Id("start").Op(":=").Qual(xmlPkg, "StartElement").Values(jen.Dict{
			jen.Id("Name"): jen.Qual(xmlPkg, "Name").Values(jen.Dict{jen.Id("Local"): jen.Id("name")}),
		}),
		jen.If(jen.Err().Op(":=").Id("enc").Dot("EncodeToken").Call(jen.Id("start")), jen.Err().Op("!=").Nil()).Block(
			jen.Return(jen.Err()),
		),
		jen.Switch(jen.Id("x").Op(":=").Id("v").Assert(jen.Type())).Block(
			jen.Case(jen.Map(jen.String()).Any()).Block(
				jen.For(jen.List(jen.Id("_"), jen.Id("k")).Op(":=").Range().Id("sortedKeys").Call(jen.Id("x"))).Block(
					jen.If(
						jen.Err().Op(":=").Id("writeXML").Call(jen.Id("enc"), jen.Id("k"), jen.Id("x").Index(jen.Id("k"))),
						jen.Err().Op("!=").Nil(),
					).Block(jen.Return(jen.Err())),
				),
			),
			jen.Case(jen.Nil()).Block(),
			jen.Default().Block(
				jen.List(jen.Id("s"), jen.Err()).Op(":=").Id("formatValue").Call(jen.Id("x")),
				ifErrReturn(jen.Err()),
				jen.If(
					jen.Err().Op(":=").Id("enc").Dot("EncodeToken").Call(jen.Qual(xmlPkg, "CharData").Call(jen.Id("s"))),
					jen.Err().Op("!=").Nil(),
				).Block(jen.Return(jen.Err())),
			),
		),
		jen.Return(jen.Id("enc").Dot("EncodeToken").Call(jen.Id("start").Dot("End").Call())),
	)
}
