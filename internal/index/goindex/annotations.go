package goindex

import (
	"go/ast"
	"strconv"
	"strings"

	"github.com/Benny93/reachgraph/internal/index"
)

// directivePrefix marks a doc comment line declaring an annotation:
//
//	//reachgraph:annotation Entity table=orders
const directivePrefix = "//reachgraph:annotation "

// tagAnnotations turns each struct tag key into an annotation holding the
// tag value. Validation rules additionally become the constraint
// annotations used for field cardinality.
func tagAnnotations(tag string) []index.Annotation {
	var out []index.Annotation
	for _, kv := range parseTag(tag) {
		out = append(out, index.Annotation{Name: kv.key, Params: map[string]string{"value": kv.value}})
		if kv.key == "validate" || kv.key == "binding" {
			out = append(out, validateAnnotations(kv.value)...)
		}
	}
	return out
}

func validateAnnotations(rules string) []index.Annotation {
	var out []index.Annotation
	for _, rule := range strings.Split(rules, ",") {
		name, arg, _ := strings.Cut(strings.TrimSpace(rule), "=")
		switch name {
		case "required":
			out = append(out, index.Annotation{Name: "NotNull"})
		case "min", "gte":
			out = append(out, index.Annotation{Name: "Min", Params: map[string]string{"value": arg}})
		case "max", "lte":
			out = append(out, index.Annotation{Name: "Max", Params: map[string]string{"value": arg}})
		case "len":
			out = append(out, index.Annotation{Name: "Size", Params: map[string]string{"min": arg, "max": arg}})
		}
	}
	return out
}

type tagPair struct {
	key   string
	value string
}

// parseTag splits a conventional struct tag into its key:"value" pairs.
// Parsing stops at the first malformed pair.
func parseTag(tag string) []tagPair {
	var out []tagPair
	for tag != "" {
		i := 0
		for i < len(tag) && tag[i] == ' ' {
			i++
		}
		tag = tag[i:]
		if tag == "" {
			break
		}

		i = 0
		for i < len(tag) && tag[i] > ' ' && tag[i] != ':' && tag[i] != '"' && tag[i] != 0x7f {
			i++
		}
		if i == 0 || i+1 >= len(tag) || tag[i] != ':' || tag[i+1] != '"' {
			break
		}
		key := tag[:i]
		tag = tag[i+1:]

		i = 1
		for i < len(tag) && tag[i] != '"' {
			if tag[i] == '\\' {
				i++
			}
			i++
		}
		if i >= len(tag) {
			break
		}
		value, err := strconv.Unquote(tag[:i+1])
		if err != nil {
			break
		}
		tag = tag[i+1:]
		out = append(out, tagPair{key: key, value: value})
	}
	return out
}

// docAnnotations reads annotation directives and the Deprecated marker
// from a doc comment.
func docAnnotations(doc *ast.CommentGroup) []index.Annotation {
	if doc == nil {
		return nil
	}

	var out []index.Annotation
	for _, line := range doc.List {
		rest, ok := strings.CutPrefix(line.Text, directivePrefix)
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		a := index.Annotation{Name: fields[0]}
		for _, f := range fields[1:] {
			if k, v, ok := strings.Cut(f, "="); ok {
				if a.Params == nil {
					a.Params = make(map[string]string)
				}
				a.Params[k] = v
			}
		}
		out = append(out, a)
	}

	for _, paragraph := range strings.Split(doc.Text(), "\n\n") {
		if strings.HasPrefix(paragraph, "Deprecated: ") {
			out = append(out, index.Annotation{Name: "Deprecated"})
			break
		}
	}
	return out
}
