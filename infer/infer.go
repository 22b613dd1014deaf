package infer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/VanDung-dev/arraybridge/schema"
	"github.com/VanDung-dev/arraybridge/source"
)

// InferConfig controls schema inference.
type InferConfig struct {
	Namespace string      // namespace stamped on every node
	Merge     bool        // merge parallel lists sharing a count branch (default true)
	Logger    *zap.Logger // debug output for omitted branches and merges
}

// DefaultInferConfig returns sensible defaults.
func DefaultInferConfig() InferConfig {
	return InferConfig{
		Merge:  true,
		Logger: zap.NewNop(),
	}
}

// Inferrer turns branch metadata into a schema tree.
type Inferrer struct {
	Config InferConfig
}

// NewInferrer returns an Inferrer with the default config in namespace ns.
func NewInferrer(ns string) *Inferrer {
	cfg := DefaultInferConfig()
	cfg.Namespace = ns
	return &Inferrer{Config: cfg}
}

// Infer returns the root list of event records for tree. The result only
// depends on the tree's branch layout and is the same on every call.
func (inf *Inferrer) Infer(tree source.Tree) *schema.List {
	var content schema.Node = inf.accumulate(tree.Branches())
	if inf.Config.Merge {
		content = schema.Replace(content, inf.combineLists(tree))
	}
	return &schema.List{
		Content:   content,
		Namespace: inf.Config.Namespace,
		Doc:       tree.Title(),
	}
}

// InferFrom opens the partition at path, infers its schema and closes it.
func (inf *Inferrer) InferFrom(opener source.Opener, path, treepath string) (*schema.List, error) {
	tree, err := opener.Open(path, treepath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	root := inf.Infer(tree)
	if err := tree.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", path, err)
	}
	return root, nil
}

func (inf *Inferrer) logger() *zap.Logger {
	if inf.Config.Logger == nil {
		return zap.NewNop()
	}
	return inf.Config.Logger
}

func (inf *Inferrer) accumulate(branches []*source.Branch) *schema.Record {
	ns := inf.Config.Namespace
	out := schema.NewRecord(ns)

	for _, b := range branches {
		field := b.ShortName()

		if len(b.Branches) > 0 {
			if sub := inf.accumulate(b.Branches); sub.Len() > 0 {
				out.Set(field, sub)
			}
			continue
		}

		loc := schema.Locator(b.Name)
		switch b.Interp.Kind {
		case source.Dense:
			out.Set(field, inf.wrapDims(b))
		case source.Counted, source.Jagged:
			out.Set(field, &schema.List{Content: inf.wrapDims(b), Starts: loc, Stops: loc, Namespace: ns})
		case source.String:
			out.Set(field, &schema.List{
				Content:   &schema.Primitive{Type: b.Interp.Type, Data: loc, Namespace: ns},
				Starts:    loc,
				Stops:     loc,
				Namespace: ns,
				Name:      schema.ByteStringName,
			})
		default:
			inf.logger().Debug("branch omitted from schema",
				zap.String("branch", b.Name),
				zap.Stringer("kind", b.Interp.Kind))
		}
	}
	return out
}

// wrapDims wraps the branch's primitive in one list per fixed inner
// dimension, outermost dimension first.
func (inf *Inferrer) wrapDims(b *source.Branch) schema.Node {
	ns := inf.Config.Namespace
	var node schema.Node = &schema.Primitive{Type: b.Interp.Type, Data: schema.Locator(b.Name), Namespace: ns}
	for d := len(b.Interp.Dims); d >= 1; d-- {
		loc := schema.DimLocator(b.Name, d)
		node = &schema.List{Content: node, Starts: loc, Stops: loc, Namespace: ns}
	}
	return node
}

// combineLists rewrites a record of lists that all take their lengths from
// the same count branch into a list of records over that count branch.
// Mixed records, records with a field lacking a count branch and records
// with differing count branches are returned unchanged.
func (inf *Inferrer) combineLists(tree source.Tree) func(schema.Node) schema.Node {
	return func(n schema.Node) schema.Node {
		rec, ok := n.(*schema.Record)
		if !ok || rec.Len() == 0 {
			return n
		}

		merged := schema.NewRecord(inf.Config.Namespace)
		var count *source.Branch
		for _, name := range rec.Names() {
			field, _ := rec.Field(name)
			list, ok := field.(*schema.List)
			if !ok {
				return n
			}
			b, ok := tree.Branch(string(list.Starts))
			if !ok || b.CountBranch == nil {
				return n
			}
			if count == nil {
				count = b.CountBranch
			} else if count != b.CountBranch {
				return n
			}
			merged.Set(name, list.Content)
		}

		inf.logger().Debug("merged parallel lists",
			zap.String("count", count.Name),
			zap.Strings("fields", rec.Names()))

		loc := schema.Locator(count.Name)
		return &schema.List{Content: merged, Starts: loc, Stops: loc, Namespace: inf.Config.Namespace}
	}
}
