package field

// composite holds the ordered children shared by List, Nested and Embedded.
// Methods taking self need the outer field so children point at it.
type composite struct {
	base
	children []Field
}

// Children returns the children, pending poly slots included
func (c *composite) Children() []Field {
	out := make([]Field, len(c.children))
	copy(out, c.children)
	return out
}

// Len returns the number of effective children. Pending poly slots are
// placeholders for new entries and do not count.
func (c *composite) Len() int {
	n := 0
	for _, f := range c.children {
		if !isPending(f) {
			n++
		}
	}
	return n
}

// effective returns the children without pending poly slots
func (c *composite) effective() []Field {
	out := make([]Field, 0, len(c.children))
	for _, f := range c.children {
		if !isPending(f) {
			out = append(out, f)
		}
	}
	return out
}

func (c *composite) childrenUpdated() bool {
	for _, f := range c.effective() {
		if f.HasUpdated() {
			return true
		}
	}
	return false
}

func (c *composite) validateChildren() []error {
	var errs []error
	for _, f := range c.effective() {
		if err := f.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (c *composite) commitChildren() {
	for _, f := range c.effective() {
		f.SelfCommit()
	}
}

func (c *composite) adopt(self Container, f Field) {
	f.core().parent = self
}

// push inserts f before the trailing pending slot, if any
func (c *composite) push(self Container, f Field) {
	c.adopt(self, f)
	n := len(c.children)
	if n > 0 && isPending(c.children[n-1]) {
		c.children = append(c.children[:n-1], f, c.children[n-1])
		return
	}
	c.children = append(c.children, f)
}

func (c *composite) replace(self Container, old, nu Field) bool {
	for i, f := range c.children {
		if f == old {
			nu.core().name = old.Name()
			c.adopt(self, nu)
			c.children[i] = nu
			return true
		}
	}
	return false
}

func (c *composite) remove(f Field) bool {
	for i, child := range c.children {
		if child == f {
			c.children = append(c.children[:i], c.children[i+1:]...)
			f.core().parent = nil
			return true
		}
	}
	return false
}

// ensurePoly drops every pending slot and appends exactly one at the end
func (c *composite) ensurePoly(self Container, name string) {
	kept := c.children[:0]
	for _, f := range c.children {
		if !isPending(f) {
			kept = append(kept, f)
		}
	}
	c.children = kept

	p := newPoly(c.builder, name, nil)
	p.pending = true
	c.adopt(self, p)
	c.children = append(c.children, p)
}

func (c *composite) clear() {
	for _, f := range c.children {
		f.core().parent = nil
	}
	c.children = nil
}

func isPending(f Field) bool {
	p, ok := f.(*Poly)
	return ok && p.IsPending()
}
