package modstream

import (
	"github.com/arloliu/pdbgen/codeview"
	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/layout"
)

// node is one record of a module stream under construction. Scope openers
// refer to their enclosing opener and their closer by node index.
type node struct {
	kind   format.SymbolKind
	data   []byte
	parent int
	end    int
}

// arena holds the records of one module stream in output order.
type arena struct {
	nodes []node
}

// add appends a record and returns its index.
func (a *arena) add(kind format.SymbolKind, data []byte, parent int) int {
	a.nodes = append(a.nodes, node{kind: kind, data: data, parent: parent, end: noScope})
	return len(a.nodes) - 1
}

// close links the opener at index opener to the closer at index closer.
func (a *arena) close(opener, closer int) {
	a.nodes[opener].end = closer
}

// offsets returns the stream offset of every record. The first record follows
// the 4-byte stream signature.
func (a *arena) offsets() []uint32 {
	offsets := make([]uint32, len(a.nodes))
	off := 4
	for i := range a.nodes {
		offsets[i] = uint32(off) //nolint: gosec
		off += endian.AlignUp(codeview.RecordPrefixSize+len(a.nodes[i].data), 4)
	}

	return offsets
}

// appendTo encodes every record to buf, patching the scope links of openers
// with the offsets of their parent and closer.
func (a *arena) appendTo(buf []byte, offsets []uint32) []byte {
	engine := endian.GetLittleEndianEngine()
	for i := range a.nodes {
		n := &a.nodes[i]
		if n.end != noScope {
			var parent uint32
			if n.parent != noScope {
				parent = offsets[n.parent]
			}
			engine.PutUint32(n.data[codeview.ParentOffset:], parent)
			engine.PutUint32(n.data[codeview.EndOffset:], offsets[n.end])
			if hasNextLink(n.kind) {
				engine.PutUint32(n.data[codeview.NextOffset:], 0)
			}
		}
		buf = codeview.AppendSymbolRecord(buf, uint16(n.kind), n.data)
	}

	return buf
}

// size returns the encoded size of every record, signature excluded.
func (a *arena) size() int {
	n := 0
	for i := range a.nodes {
		n += endian.AlignUp(codeview.RecordPrefixSize+len(a.nodes[i].data), 4)
	}

	return n
}

func hasNextLink(kind format.SymbolKind) bool {
	return kind.IsProc() || kind == format.S_THUNK32
}

// streamHeader returns the signature that starts every module stream.
func streamHeader() []byte {
	return endian.GetLittleEndianEngine().AppendUint32(nil, layout.CVSignatureC13)
}
