package layer

// Base is embedded by every concrete layer type to provide the
// inner-ownership bookkeeping common to all of them. Concrete types still
// implement Kind, HeaderSize, TrailerSize, Size, Clone, and Serialize
// themselves (Size and Serialize need the concrete receiver as a Layer
// value to recurse correctly, which an embedded struct cannot supply on its
// own) but typically implement Size as `return layer.SizeOf(x)`.
type Base struct {
	inner Layer
}

// Inner returns the owned next-protocol layer, or nil.
func (b *Base) Inner() Layer { return b.inner }

// SetInner replaces the owned inner layer.
func (b *Base) SetInner(inner Layer) { b.inner = inner }

// CloneInner deep-copies the inner chain, for use by a concrete type's own
// Clone method.
func (b *Base) CloneInner() Layer {
	if b.inner == nil {
		return nil
	}
	return b.inner.Clone()
}
