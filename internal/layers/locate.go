package layers

// FindTextLayer returns the first text layer named name, searching depth-first
// in document order and descending into groups. Pixel layers and groups never
// match, even when their name does. A missing layer is reported by ok == false.
func FindTextLayer(parent Container, name string) (layer *TextLayer, ok bool) {
	if parent == nil {
		return nil, false
	}
	for _, n := range parent.Children() {
		switch l := n.(type) {
		case *TextLayer:
			if l.Name == name {
				return l, true
			}
		case *Group:
			if found, ok := FindTextLayer(l, name); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// SetText replaces the contents of layer. A nil layer is ignored.
func SetText(layer *TextLayer, text string) {
	if layer == nil {
		return
	}
	layer.Text = text
}

// Walk visits every node below parent in depth-first pre-order.
// depth is 0 for direct children of parent.
func Walk(parent Container, fn func(n Node, depth int)) {
	walk(parent, 0, fn)
}

func walk(parent Container, depth int, fn func(n Node, depth int)) {
	if parent == nil {
		return
	}
	for _, n := range parent.Children() {
		fn(n, depth)
		if g, ok := n.(*Group); ok {
			walk(g, depth+1, fn)
		}
	}
}

// TextLayerNames lists the names of all text layers in traversal order.
// Duplicates are kept, so the result also shows which fields are shadowed.
func TextLayerNames(parent Container) []string {
	var names []string
	Walk(parent, func(n Node, _ int) {
		if n.Kind() == KindText {
			names = append(names, n.LayerName())
		}
	})
	return names
}
