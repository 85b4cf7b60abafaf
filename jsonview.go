package enforce

// JSON view filtering. The input is an entity document in the shape produced
// by encoding/json into any: map[string]any for objects, []any for arrays,
// and string/float64/bool/nil leaves. Each JSON node maps positionally into
// the resource-path space below root: object key k under path p lives at
// p.Child(k). Arrays are terminal nodes of that mapping — they are kept or
// dropped whole on their own path, never expanded element by element.

// BuildJSONView returns a redacted copy of entity containing exactly the
// parts the context may read. A leaf survives iff its own path holds the
// read permission for some context subject. An object survives iff its own
// path is readable or at least one descendant survives; in the latter case
// the object is retained purely as scaffolding around the visible parts.
// When nothing is visible the result is nil.
func (e *treeEnforcer) BuildJSONView(entity any, authCtx AuthorizationContext, root ResourcePath) any {
	view, _ := e.filterNode(entity, authCtx, root)
	return view
}

func (e *treeEnforcer) filterNode(node any, authCtx AuthorizationContext, path ResourcePath) (any, bool) {
	obj, isObject := node.(map[string]any)
	if !isObject {
		if e.HasPermission(authCtx, path, e.readPerm) {
			return node, true
		}
		return nil, false
	}

	out := make(map[string]any)
	for key, child := range obj {
		if view, keep := e.filterNode(child, authCtx, path.Child(key)); keep {
			out[key] = view
		}
	}
	if len(out) > 0 {
		return out, true
	}
	// no visible descendants: the (now empty) object survives only on its
	// own readability
	if e.HasPermission(authCtx, path, e.readPerm) {
		return out, true
	}
	return nil, false
}
