package card

import (
	"github.com/malivvan/opgpcard/tlv"
)

// Kind distinguishes a directory-like DO from a leaf DO, mirroring ISO 7816-4
// DF/EF semantics.
type Kind int

const (
	// KindEF marks an elementary (leaf, primitive) data object.
	KindEF Kind = iota
	// KindDF marks a dedicated-file-like (constructed) data object.
	KindDF
)

// FileDescriptor is the read-only view handed back by SelectFile and
// ListFiles; it never aliases blob internals.
type FileDescriptor struct {
	ID   uint16
	Type Kind
	Path []uint16
}

// blob is one node of the virtual tree synthesized over the card's flat DO
// namespace. Parent links are weak (non-owning); the tree is a pure
// ownership hierarchy rooted at the session's MF, so no cycle can form
// through child/parent references alone.
type blob struct {
	id       uint16
	kind     Kind
	desc     *descriptor // nil for nodes discovered purely by TLV parsing without a registry entry
	parent   *blob
	children []*blob
	enumd    bool // enumerate() has run (possibly producing zero children)

	cachedBytes []byte
	status      error

	sess *Session
}

func (b *blob) path() []uint16 {
	if b.parent == nil {
		return []uint16{b.id}
	}
	return append(b.parent.path(), b.id)
}

func (b *blob) descriptorView() FileDescriptor {
	return FileDescriptor{ID: b.id, Type: b.kind, Path: b.path()}
}

// fetch ensures cachedBytes is populated. A node with a registry descriptor
// is fetched again on every call until a fetch succeeds, and status records
// the outcome of the latest attempt; a node without a descriptor returns its
// recorded status, or ErrFileNotFound.
func (b *blob) fetch() error {
	if b.cachedBytes != nil {
		return nil
	}
	if b.desc == nil {
		if b.status != nil {
			return b.status
		}
		return ErrFileNotFound
	}

	var data []byte
	var err error
	switch b.desc.kind {
	case kindStandard:
		data, err = getData(b.sess, b.id)
	case kindPublicKey:
		data, err = getPublicKey(b.sess, b.id)
	case kindPublicKeyPEM:
		data, err = b.sess.synthesizePEM(b.desc.pemSource)
	default:
		err = ErrObjectNotValid
	}

	if err != nil {
		b.status = err
		return err
	}
	b.status = nil
	b.cachedBytes = data
	return nil
}

// enumerate populates b.children from b.cachedBytes's TLV structure. It is a
// no-op once children have been discovered (spec: "Idempotent. If
// parent.first_child is already set, returns success.").
func (b *blob) enumerate() error {
	if b.enumd {
		return nil
	}
	if err := b.fetch(); err != nil {
		return err
	}

	objs, err := tlv.DecodeAll(b.cachedBytes)
	if err != nil {
		return ErrObjectNotValid
	}

	for _, obj := range objs {
		child := &blob{
			id:          obj.Tag,
			parent:      b,
			sess:        b.sess,
			cachedBytes: obj.Value,
		}
		if obj.Constructed {
			child.kind = KindDF
		} else {
			child.kind = KindEF
		}
		if d, ok := lookupDescriptor(obj.Tag); ok {
			child.desc = &d
		}
		b.children = append(b.children, child)
	}
	b.enumd = true
	return nil
}

// getChild ensures b is enumerated and returns its child with the given tag,
// fetching the child's bytes if they are not yet cached.
func (b *blob) getChild(tag uint16) (*blob, error) {
	if err := b.enumerate(); err != nil {
		return nil, err
	}
	for _, c := range b.children {
		if c.id == tag {
			if err := c.fetch(); err != nil {
				return nil, err
			}
			return c, nil
		}
	}
	return nil, ErrFileNotFound
}

// teardown performs the post-order free walk described by the session
// lifecycle; in Go this just severs references so the GC can reclaim the
// tree, but it is kept as an explicit step to mirror the source driver's
// deterministic free and to make memory ownership obvious at a call site.
func (b *blob) teardown() {
	for _, c := range b.children {
		c.teardown()
	}
	b.children = nil
	b.cachedBytes = nil
	b.parent = nil
	b.sess = nil
}
