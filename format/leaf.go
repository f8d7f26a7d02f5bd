package format

import "fmt"

// LeafKind identifies a CodeView type or id record (LF_*).
type LeafKind uint16

// Type records.
const (
	LF_VTSHAPE     LeafKind = 0x000a
	LF_LABEL       LeafKind = 0x000e
	LF_ENDPRECOMP  LeafKind = 0x0014
	LF_MODIFIER    LeafKind = 0x1001
	LF_POINTER     LeafKind = 0x1002
	LF_PROCEDURE   LeafKind = 0x1008
	LF_MFUNCTION   LeafKind = 0x1009
	LF_ARGLIST     LeafKind = 0x1201
	LF_FIELDLIST   LeafKind = 0x1203
	LF_BITFIELD    LeafKind = 0x1205
	LF_METHODLIST  LeafKind = 0x1206
	LF_ARRAY       LeafKind = 0x1503
	LF_CLASS       LeafKind = 0x1504
	LF_STRUCTURE   LeafKind = 0x1505
	LF_UNION       LeafKind = 0x1506
	LF_ENUM        LeafKind = 0x1507
	LF_PRECOMP     LeafKind = 0x1509
	LF_TYPESERVER2 LeafKind = 0x1515
	LF_INTERFACE   LeafKind = 0x1519
	LF_VFTABLE     LeafKind = 0x151d
)

// Id records, stored in the IPI stream.
const (
	LF_FUNC_ID          LeafKind = 0x1601
	LF_MFUNC_ID         LeafKind = 0x1602
	LF_BUILDINFO        LeafKind = 0x1603
	LF_SUBSTR_LIST      LeafKind = 0x1604
	LF_STRING_ID        LeafKind = 0x1605
	LF_UDT_SRC_LINE     LeafKind = 0x1606
	LF_UDT_MOD_SRC_LINE LeafKind = 0x1607
)

// Field list members.
const (
	LF_BCLASS     LeafKind = 0x1400
	LF_VBCLASS    LeafKind = 0x1401
	LF_IVBCLASS   LeafKind = 0x1402
	LF_INDEX      LeafKind = 0x1404
	LF_VFUNCTAB   LeafKind = 0x1409
	LF_ENUMERATE  LeafKind = 0x1502
	LF_MEMBER     LeafKind = 0x150d
	LF_STMEMBER   LeafKind = 0x150e
	LF_METHOD     LeafKind = 0x150f
	LF_NESTTYPE   LeafKind = 0x1510
	LF_ONEMETHOD  LeafKind = 0x1511
	LF_BINTERFACE LeafKind = 0x151a
)

// Numeric leaves.
const (
	LF_NUMERIC    LeafKind = 0x8000
	LF_CHAR       LeafKind = 0x8000
	LF_SHORT      LeafKind = 0x8001
	LF_USHORT     LeafKind = 0x8002
	LF_LONG       LeafKind = 0x8003
	LF_ULONG      LeafKind = 0x8004
	LF_REAL32     LeafKind = 0x8005
	LF_REAL64     LeafKind = 0x8006
	LF_REAL80     LeafKind = 0x8007
	LF_REAL128    LeafKind = 0x8008
	LF_QUADWORD   LeafKind = 0x8009
	LF_UQUADWORD  LeafKind = 0x800a
	LF_REAL48     LeafKind = 0x800b
	LF_COMPLEX32  LeafKind = 0x800c
	LF_COMPLEX64  LeafKind = 0x800d
	LF_COMPLEX80  LeafKind = 0x800e
	LF_COMPLEX128 LeafKind = 0x800f
	LF_VARSTRING  LeafKind = 0x8010
	LF_OCTWORD    LeafKind = 0x8017
	LF_UOCTWORD   LeafKind = 0x8018
	LF_REAL16     LeafKind = 0x801c
)

// LF_PAD0 is the smallest padding byte value inside field lists and records.
const LF_PAD0 = 0xf0

// IsIDKind reports whether records of this kind belong to the IPI stream.
func (k LeafKind) IsIDKind() bool {
	switch k {
	case LF_FUNC_ID, LF_MFUNC_ID, LF_BUILDINFO, LF_SUBSTR_LIST, LF_STRING_ID,
		LF_UDT_SRC_LINE, LF_UDT_MOD_SRC_LINE:
		return true
	default:
		return false
	}
}

// IsAggregate reports whether the kind describes a class, struct, union, enum or interface.
func (k LeafKind) IsAggregate() bool {
	switch k {
	case LF_CLASS, LF_STRUCTURE, LF_UNION, LF_ENUM, LF_INTERFACE:
		return true
	default:
		return false
	}
}

func (k LeafKind) String() string {
	switch k {
	case LF_VTSHAPE:
		return "LF_VTSHAPE"
	case LF_LABEL:
		return "LF_LABEL"
	case LF_ENDPRECOMP:
		return "LF_ENDPRECOMP"
	case LF_MODIFIER:
		return "LF_MODIFIER"
	case LF_POINTER:
		return "LF_POINTER"
	case LF_PROCEDURE:
		return "LF_PROCEDURE"
	case LF_MFUNCTION:
		return "LF_MFUNCTION"
	case LF_ARGLIST:
		return "LF_ARGLIST"
	case LF_FIELDLIST:
		return "LF_FIELDLIST"
	case LF_BITFIELD:
		return "LF_BITFIELD"
	case LF_METHODLIST:
		return "LF_METHODLIST"
	case LF_PRECOMP:
		return "LF_PRECOMP"
	case LF_TYPESERVER2:
		return "LF_TYPESERVER2"
	case LF_ARRAY:
		return "LF_ARRAY"
	case LF_CLASS:
		return "LF_CLASS"
	case LF_STRUCTURE:
		return "LF_STRUCTURE"
	case LF_UNION:
		return "LF_UNION"
	case LF_ENUM:
		return "LF_ENUM"
	case LF_INTERFACE:
		return "LF_INTERFACE"
	case LF_VFTABLE:
		return "LF_VFTABLE"
	case LF_FUNC_ID:
		return "LF_FUNC_ID"
	case LF_MFUNC_ID:
		return "LF_MFUNC_ID"
	case LF_BUILDINFO:
		return "LF_BUILDINFO"
	case LF_SUBSTR_LIST:
		return "LF_SUBSTR_LIST"
	case LF_STRING_ID:
		return "LF_STRING_ID"
	case LF_UDT_SRC_LINE:
		return "LF_UDT_SRC_LINE"
	case LF_UDT_MOD_SRC_LINE:
		return "LF_UDT_MOD_SRC_LINE"
	case LF_BCLASS:
		return "LF_BCLASS"
	case LF_VBCLASS:
		return "LF_VBCLASS"
	case LF_IVBCLASS:
		return "LF_IVBCLASS"
	case LF_INDEX:
		return "LF_INDEX"
	case LF_VFUNCTAB:
		return "LF_VFUNCTAB"
	case LF_ENUMERATE:
		return "LF_ENUMERATE"
	case LF_MEMBER:
		return "LF_MEMBER"
	case LF_STMEMBER:
		return "LF_STMEMBER"
	case LF_METHOD:
		return "LF_METHOD"
	case LF_NESTTYPE:
		return "LF_NESTTYPE"
	case LF_ONEMETHOD:
		return "LF_ONEMETHOD"
	case LF_BINTERFACE:
		return "LF_BINTERFACE"
	default:
		return fmt.Sprintf("LF_0x%04x", uint16(k))
	}
}
