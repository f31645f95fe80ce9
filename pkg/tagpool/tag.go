package tagpool

// Tag identifies a capacity group. The zero value is not a valid named
// tag on its own terms; use Generic for the overflow group and NewTag
// for everything else so that an empty-string name is distinguishable
// from the generic sentinel.
type Tag struct {
	name    string
	generic bool
}

// Generic is the null tag: the overflow pool any named tag may borrow
// from once its own reservation is saturated.
var Generic = Tag{generic: true}

// NewTag returns a named, non-generic tag. Two tags with the same name
// compare equal; NewTag("") is a valid named tag distinct from Generic.
func NewTag(name string) Tag {
	return Tag{name: name}
}

// IsGeneric reports whether t is the null tag.
func (t Tag) IsGeneric() bool {
	return t.generic
}

// String returns the tag's name, or "<generic>" for the null tag.
func (t Tag) String() string {
	if t.generic {
		return "<generic>"
	}
	return t.name
}
