package schema

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

type primitiveJSON struct {
	Type      string  `json:"type"`
	DType     string  `json:"dtype"`
	Data      Locator `json:"data,omitempty"`
	Namespace string  `json:"namespace,omitempty"`
	Name      string  `json:"name,omitempty"`
	Doc       string  `json:"doc,omitempty"`
}

type listJSON struct {
	Type      string  `json:"type"`
	Starts    Locator `json:"starts,omitempty"`
	Stops     Locator `json:"stops,omitempty"`
	Namespace string  `json:"namespace,omitempty"`
	Name      string  `json:"name,omitempty"`
	Doc       string  `json:"doc,omitempty"`
	Content   Node    `json:"content"`
}

// Record fields are rendered as [name, node] pairs to keep their order.
type recordJSON struct {
	Type      string  `json:"type"`
	Namespace string  `json:"namespace,omitempty"`
	Name      string  `json:"name,omitempty"`
	Doc       string  `json:"doc,omitempty"`
	Fields    [][]any `json:"fields"`
}

func (p *Primitive) MarshalJSON() ([]byte, error) {
	return json.Marshal(primitiveJSON{
		Type:      "primitive",
		DType:     p.Type.String(),
		Data:      p.Data,
		Namespace: p.Namespace,
		Name:      p.Name,
		Doc:       p.Doc,
	})
}

func (l *List) MarshalJSON() ([]byte, error) {
	return json.Marshal(listJSON{
		Type:      "list",
		Starts:    l.Starts,
		Stops:     l.Stops,
		Namespace: l.Namespace,
		Name:      l.Name,
		Doc:       l.Doc,
		Content:   l.Content,
	})
}

func (r *Record) MarshalJSON() ([]byte, error) {
	fields := make([][]any, 0, r.Len())
	r.Each(func(name string, n Node) {
		fields = append(fields, []any{name, n})
	})
	return json.Marshal(recordJSON{
		Type:      "record",
		Namespace: r.Namespace,
		Name:      r.Name,
		Doc:       r.Doc,
		Fields:    fields,
	})
}

// Format renders a compact single-line description of the tree, e.g.
//
//	List[nMuon](Record{pt: Primitive<float32>(Muon.pt)})
func Format(n Node) string {
	var sb strings.Builder
	format(&sb, n)
	return sb.String()
}

func format(sb *strings.Builder, n Node) {
	switch t := n.(type) {
	case *Primitive:
		fmt.Fprintf(sb, "Primitive<%s>(%s)", t.Type, t.Data)
	case *List:
		sb.WriteString("List[")
		sb.WriteString(string(t.Starts))
		if t.Stops != t.Starts {
			sb.WriteString(",")
			sb.WriteString(string(t.Stops))
		}
		sb.WriteString("]")
		if t.Name != "" {
			sb.WriteString(":" + t.Name)
		}
		sb.WriteString("(")
		format(sb, t.Content)
		sb.WriteString(")")
	case *Record:
		sb.WriteString("Record{")
		first := true
		t.Each(func(name string, field Node) {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			sb.WriteString(name)
			sb.WriteString(": ")
			format(sb, field)
		})
		sb.WriteString("}")
	default:
		sb.WriteString("<nil>")
	}
}
