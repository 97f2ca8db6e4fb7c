package templates

import (
	"slices"
	"text/template"
	"text/template/parse"
)

// References reports whether tmpl, or any template it defines, may read one of
// keys from its data. Handing the data on whole, as {{.}} or
// {{template "x" .}} do, counts as a reference.
func References(tmpl *template.Template, keys ...string) bool {
	for _, t := range append(tmpl.Templates(), tmpl) {
		if t.Tree != nil && references(t.Tree.Root, keys) {
			return true
		}
	}
	return false
}

func references(n parse.Node, keys []string) bool {
	named := func(idents []string) bool {
		return slices.ContainsFunc(idents, func(s string) bool { return slices.Contains(keys, s) })
	}
	switch n := n.(type) {
	case *parse.ListNode:
		if n == nil {
			return false
		}
		return slices.ContainsFunc(n.Nodes, func(c parse.Node) bool { return references(c, keys) })
	case *parse.PipeNode:
		if n == nil {
			return false
		}
		return slices.ContainsFunc(n.Cmds, func(c *parse.CommandNode) bool { return references(c, keys) })
	case *parse.CommandNode:
		return slices.ContainsFunc(n.Args, func(a parse.Node) bool { return references(a, keys) })
	case *parse.ActionNode:
		return references(n.Pipe, keys)
	case *parse.TemplateNode:
		return references(n.Pipe, keys)
	case *parse.IfNode:
		return branch(&n.BranchNode, keys)
	case *parse.RangeNode:
		return branch(&n.BranchNode, keys)
	case *parse.WithNode:
		return branch(&n.BranchNode, keys)
	case *parse.FieldNode:
		return named(n.Ident)
	case *parse.VariableNode:
		return named(n.Ident)
	case *parse.ChainNode:
		return references(n.Node, keys) || named(n.Field)
	case *parse.StringNode:
		return slices.Contains(keys, n.Text)
	case *parse.DotNode:
		return true
	}
	return false
}

func branch(b *parse.BranchNode, keys []string) bool {
	return references(b.Pipe, keys) || references(b.List, keys) || references(b.ElseList, keys)
}
