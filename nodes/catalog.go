package nodes

import (
	"embed"
	"fmt"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// builtin lists the messaging node types. Duplicate funcs carry over the
// structural choices only (media kind, validation type, catalog, ...).
var builtin = []struct {
	t Type
	f Factory
}{
	{Start, Factory{
		New: func() Payload { return &StartData{Keywords: []string{}} },
		Duplicate: func(prev Payload) Payload {
			return &StartData{Keywords: []string{}, MatchType: prev.(*StartData).MatchType}
		},
	}},
	{Delay, Factory{
		New: func() Payload { return &DelayData{} },
	}},
	{Goal, Factory{
		New: func() Payload { return &GoalData{} },
	}},
	{AskQuestion, Factory{
		New: func() Payload { return &AskQuestionData{} },
		Duplicate: func(prev Payload) Payload {
			return &AskQuestionData{ValidationType: prev.(*AskQuestionData).ValidationType}
		},
	}},
	{MediaButton, Factory{
		New: func() Payload { return &MediaButtonData{Buttons: []Button{}} },
		Duplicate: func(prev Payload) Payload {
			return &MediaButtonData{MediaType: prev.(*MediaButtonData).MediaType, Buttons: []Button{}}
		},
	}},
	{TextButton, Factory{
		New: func() Payload { return &TextButtonData{Buttons: []Button{}} },
	}},
	{Template, Factory{
		New: func() Payload { return &TemplateData{Variables: []string{}} },
		Duplicate: func(prev Payload) Payload {
			return &TemplateData{Language: prev.(*TemplateData).Language, Variables: []string{}}
		},
	}},
	{List, Factory{
		New: func() Payload { return &ListData{Sections: []ListSection{}} },
	}},
	{SingleProduct, Factory{
		New: func() Payload { return &SingleProductData{} },
		Duplicate: func(prev Payload) Payload {
			return &SingleProductData{CatalogID: prev.(*SingleProductData).CatalogID}
		},
	}},
	{MultiProduct, Factory{
		New: func() Payload { return &MultiProductData{Sections: []ProductSection{}} },
		Duplicate: func(prev Payload) Payload {
			return &MultiProductData{CatalogID: prev.(*MultiProductData).CatalogID, Sections: []ProductSection{}}
		},
	}},
	{Catalog, Factory{
		New: func() Payload { return &CatalogData{} },
		Duplicate: func(prev Payload) Payload {
			return &CatalogData{CatalogID: prev.(*CatalogData).CatalogID}
		},
	}},
	{SetVariable, Factory{
		New: func() Payload { return &SetVariableData{} },
		Duplicate: func(prev Payload) Payload {
			return &SetVariableData{Scope: prev.(*SetVariableData).Scope}
		},
	}},
	{Summary, Factory{
		New: func() Payload { return &SummaryData{Variables: []string{}} },
	}},
}

// Default returns a registry holding every built-in node type with its
// JSON schema. It panics if an embedded schema is broken.
func Default() *Registry {
	r := NewRegistry()
	for _, b := range builtin {
		f := b.f
		schema, err := schemaFS.ReadFile("schemas/" + string(b.t) + ".json")
		if err != nil {
			panic(fmt.Sprintf("nodes: missing schema for %q: %v", b.t, err))
		}
		f.Schema = schema
		if err := r.Register(b.t, f); err != nil {
			panic(err)
		}
	}
	return r
}
