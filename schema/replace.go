package schema

// Replace rebuilds the tree rooted at n bottom-up: children are replaced
// first, then fn is applied to the rebuilt node. Lists and records are
// copied, so the input tree is never modified.
func Replace(n Node, fn func(Node) Node) Node {
	switch t := n.(type) {
	case *List:
		c := *t
		c.Content = Replace(t.Content, fn)
		return fn(&c)
	case *Record:
		c := NewRecord(t.Namespace)
		c.Name = t.Name
		c.Doc = t.Doc
		t.Each(func(name string, field Node) {
			c.Set(name, Replace(field, fn))
		})
		return fn(c)
	default:
		return fn(n)
	}
}

// Walk visits every node of the tree in pre-order. Returning false from fn
// skips the node's children.
func Walk(n Node, fn func(path string, n Node) bool) {
	walk("", n, fn)
}

func walk(path string, n Node, fn func(string, Node) bool) {
	if !fn(path, n) {
		return
	}
	switch t := n.(type) {
	case *List:
		walk(path+"[]", t.Content, fn)
	case *Record:
		t.Each(func(name string, field Node) {
			p := name
			if path != "" {
				p = path + "." + name
			}
			walk(p, field, fn)
		})
	}
}
