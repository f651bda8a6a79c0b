package project

import (
	"fmt"
	"strconv"
	"strings"
)

// resolveRefs expands every internal {"$ref": "#/path/to/node"} reference in
// a decoded project document. References may point at other references; the
// chain must form a DAG. A cycle is reported as *CycleError with a witness
// path instead of looping.
func resolveRefs(root any) (any, error) {
	r := &refResolver{
		root:     root,
		active:   make(map[string]bool),
		resolved: make(map[string]any),
	}
	return r.resolve(root)
}

type refResolver struct {
	root      any
	resolving []string       // stack of pointers currently being expanded
	active    map[string]bool // membership set for the stack
	resolved  map[string]any  // memoized fully-expanded targets
}

func (r *refResolver) resolve(node any) (any, error) {
	switch v := node.(type) {
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok && len(v) == 1 {
			return r.deref(ref)
		}
		out := make(map[string]any, len(v))
		for key, child := range v {
			expanded, err := r.resolve(child)
			if err != nil {
				return nil, err
			}
			out[key] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			expanded, err := r.resolve(child)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return node, nil
	}
}

func (r *refResolver) deref(ptr string) (any, error) {
	if r.active[ptr] {
		chain := append(append([]string{}, r.resolving...), ptr)
		return nil, &CycleError{Chain: chain}
	}
	if v, ok := r.resolved[ptr]; ok {
		return v, nil
	}

	target, err := lookupPointer(r.root, ptr)
	if err != nil {
		return nil, err
	}

	r.active[ptr] = true
	r.resolving = append(r.resolving, ptr)

	expanded, err := r.resolve(target)

	r.resolving = r.resolving[:len(r.resolving)-1]
	delete(r.active, ptr)

	if err != nil {
		return nil, err
	}
	r.resolved[ptr] = expanded
	return expanded, nil
}

// lookupPointer evaluates a document-internal JSON pointer ("#/a/b/0").
func lookupPointer(root any, ptr string) (any, error) {
	if !strings.HasPrefix(ptr, "#") {
		return nil, fmt.Errorf("unsupported external reference %q", ptr)
	}
	frag := strings.TrimPrefix(ptr, "#")
	if frag == "" {
		return root, nil
	}
	if !strings.HasPrefix(frag, "/") {
		return nil, fmt.Errorf("malformed reference %q", ptr)
	}

	node := root
	for _, raw := range strings.Split(frag[1:], "/") {
		token := strings.ReplaceAll(strings.ReplaceAll(raw, "~1", "/"), "~0", "~")
		switch v := node.(type) {
		case map[string]any:
			child, ok := v[token]
			if !ok {
				return nil, fmt.Errorf("reference %q points at missing key %q", ptr, token)
			}
			node = child
		case []any:
			idx, err := strconv.Atoi(token)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("reference %q points at invalid index %q", ptr, token)
			}
			node = v[idx]
		default:
			return nil, fmt.Errorf("reference %q traverses non-container value", ptr)
		}
	}
	return node, nil
}
