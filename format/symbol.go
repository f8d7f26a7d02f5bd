package format

import "fmt"

// SymbolKind identifies a CodeView symbol record (S_*).
type SymbolKind uint16

const (
	S_END                                  SymbolKind = 0x0006
	S_FRAMEPROC                            SymbolKind = 0x1012
	S_ANNOTATION                           SymbolKind = 0x1019
	S_OBJNAME                              SymbolKind = 0x1101
	S_THUNK32                              SymbolKind = 0x1102
	S_BLOCK32                              SymbolKind = 0x1103
	S_LABEL32                              SymbolKind = 0x1105
	S_REGISTER                             SymbolKind = 0x1106
	S_CONSTANT                             SymbolKind = 0x1107
	S_UDT                                  SymbolKind = 0x1108
	S_BPREL32                              SymbolKind = 0x110b
	S_LDATA32                              SymbolKind = 0x110c
	S_GDATA32                              SymbolKind = 0x110d
	S_PUB32                                SymbolKind = 0x110e
	S_LPROC32                              SymbolKind = 0x110f
	S_GPROC32                              SymbolKind = 0x1110
	S_REGREL32                             SymbolKind = 0x1111
	S_LTHREAD32                            SymbolKind = 0x1112
	S_GTHREAD32                            SymbolKind = 0x1113
	S_COMPILE2                             SymbolKind = 0x1116
	S_LMANDATA                             SymbolKind = 0x111c
	S_GMANDATA                             SymbolKind = 0x111d
	S_UNAMESPACE                           SymbolKind = 0x1124
	S_PROCREF                              SymbolKind = 0x1125
	S_DATAREF                              SymbolKind = 0x1126
	S_LPROCREF                             SymbolKind = 0x1127
	S_TRAMPOLINE                           SymbolKind = 0x112c
	S_MANCONSTANT                          SymbolKind = 0x112d
	S_SEPCODE                              SymbolKind = 0x1132
	S_SECTION                              SymbolKind = 0x1136
	S_COFFGROUP                            SymbolKind = 0x1137
	S_EXPORT                               SymbolKind = 0x1138
	S_CALLSITEINFO                         SymbolKind = 0x1139
	S_FRAMECOOKIE                          SymbolKind = 0x113a
	S_COMPILE3                             SymbolKind = 0x113c
	S_ENVBLOCK                             SymbolKind = 0x113d
	S_LOCAL                                SymbolKind = 0x113e
	S_DEFRANGE                             SymbolKind = 0x113f
	S_DEFRANGE_SUBFIELD                    SymbolKind = 0x1140
	S_DEFRANGE_REGISTER                    SymbolKind = 0x1141
	S_DEFRANGE_FRAMEPOINTER_REL            SymbolKind = 0x1142
	S_DEFRANGE_SUBFIELD_REGISTER           SymbolKind = 0x1143
	S_DEFRANGE_FRAMEPOINTER_REL_FULL_SCOPE SymbolKind = 0x1144
	S_DEFRANGE_REGISTER_REL                SymbolKind = 0x1145
	S_LPROC32_ID                           SymbolKind = 0x1146
	S_GPROC32_ID                           SymbolKind = 0x1147
	S_BUILDINFO                            SymbolKind = 0x114c
	S_INLINESITE                           SymbolKind = 0x114d
	S_INLINESITE_END                       SymbolKind = 0x114e
	S_PROC_ID_END                          SymbolKind = 0x114f
	S_FILESTATIC                           SymbolKind = 0x1153
	S_LPROC32_DPC                          SymbolKind = 0x1155
	S_LPROC32_DPC_ID                       SymbolKind = 0x1156
	S_ARMSWITCHTABLE                       SymbolKind = 0x1159
	S_CALLEES                              SymbolKind = 0x115a
	S_CALLERS                              SymbolKind = 0x115b
	S_INLINESITE2                          SymbolKind = 0x115d
	S_HEAPALLOCSITE                        SymbolKind = 0x115e
	S_INLINEES                             SymbolKind = 0x1168
)

// IsProc reports whether the kind is a procedure scope opener.
func (k SymbolKind) IsProc() bool {
	switch k {
	case S_GPROC32, S_LPROC32, S_GPROC32_ID, S_LPROC32_ID, S_LPROC32_DPC, S_LPROC32_DPC_ID:
		return true
	default:
		return false
	}
}

// IsGlobalProc reports whether the procedure is externally visible.
func (k SymbolKind) IsGlobalProc() bool {
	return k == S_GPROC32 || k == S_GPROC32_ID
}

func (k SymbolKind) String() string {
	switch k {
	case S_END:
		return "S_END"
	case S_FRAMEPROC:
		return "S_FRAMEPROC"
	case S_ANNOTATION:
		return "S_ANNOTATION"
	case S_OBJNAME:
		return "S_OBJNAME"
	case S_THUNK32:
		return "S_THUNK32"
	case S_BLOCK32:
		return "S_BLOCK32"
	case S_LABEL32:
		return "S_LABEL32"
	case S_REGISTER:
		return "S_REGISTER"
	case S_CONSTANT:
		return "S_CONSTANT"
	case S_UDT:
		return "S_UDT"
	case S_BPREL32:
		return "S_BPREL32"
	case S_LDATA32:
		return "S_LDATA32"
	case S_GDATA32:
		return "S_GDATA32"
	case S_PUB32:
		return "S_PUB32"
	case S_LPROC32:
		return "S_LPROC32"
	case S_GPROC32:
		return "S_GPROC32"
	case S_REGREL32:
		return "S_REGREL32"
	case S_LTHREAD32:
		return "S_LTHREAD32"
	case S_GTHREAD32:
		return "S_GTHREAD32"
	case S_COMPILE2:
		return "S_COMPILE2"
	case S_LMANDATA:
		return "S_LMANDATA"
	case S_GMANDATA:
		return "S_GMANDATA"
	case S_UNAMESPACE:
		return "S_UNAMESPACE"
	case S_PROCREF:
		return "S_PROCREF"
	case S_DATAREF:
		return "S_DATAREF"
	case S_LPROCREF:
		return "S_LPROCREF"
	case S_TRAMPOLINE:
		return "S_TRAMPOLINE"
	case S_MANCONSTANT:
		return "S_MANCONSTANT"
	case S_SEPCODE:
		return "S_SEPCODE"
	case S_SECTION:
		return "S_SECTION"
	case S_COFFGROUP:
		return "S_COFFGROUP"
	case S_EXPORT:
		return "S_EXPORT"
	case S_CALLSITEINFO:
		return "S_CALLSITEINFO"
	case S_FRAMECOOKIE:
		return "S_FRAMECOOKIE"
	case S_COMPILE3:
		return "S_COMPILE3"
	case S_ENVBLOCK:
		return "S_ENVBLOCK"
	case S_LOCAL:
		return "S_LOCAL"
	case S_DEFRANGE:
		return "S_DEFRANGE"
	case S_DEFRANGE_SUBFIELD:
		return "S_DEFRANGE_SUBFIELD"
	case S_DEFRANGE_REGISTER:
		return "S_DEFRANGE_REGISTER"
	case S_DEFRANGE_FRAMEPOINTER_REL:
		return "S_DEFRANGE_FRAMEPOINTER_REL"
	case S_DEFRANGE_SUBFIELD_REGISTER:
		return "S_DEFRANGE_SUBFIELD_REGISTER"
	case S_DEFRANGE_FRAMEPOINTER_REL_FULL_SCOPE:
		return "S_DEFRANGE_FRAMEPOINTER_REL_FULL_SCOPE"
	case S_DEFRANGE_REGISTER_REL:
		return "S_DEFRANGE_REGISTER_REL"
	case S_LPROC32_ID:
		return "S_LPROC32_ID"
	case S_GPROC32_ID:
		return "S_GPROC32_ID"
	case S_BUILDINFO:
		return "S_BUILDINFO"
	case S_INLINESITE:
		return "S_INLINESITE"
	case S_INLINESITE_END:
		return "S_INLINESITE_END"
	case S_PROC_ID_END:
		return "S_PROC_ID_END"
	case S_FILESTATIC:
		return "S_FILESTATIC"
	case S_LPROC32_DPC:
		return "S_LPROC32_DPC"
	case S_LPROC32_DPC_ID:
		return "S_LPROC32_DPC_ID"
	case S_ARMSWITCHTABLE:
		return "S_ARMSWITCHTABLE"
	case S_CALLEES:
		return "S_CALLEES"
	case S_CALLERS:
		return "S_CALLERS"
	case S_INLINESITE2:
		return "S_INLINESITE2"
	case S_HEAPALLOCSITE:
		return "S_HEAPALLOCSITE"
	case S_INLINEES:
		return "S_INLINEES"
	default:
		return fmt.Sprintf("S_0x%04x", uint16(k))
	}
}

// SubsectionKind identifies a C13 debug subsection inside a .debug$S section.
type SubsectionKind uint32

const (
	DEBUG_S_IGNORE               SubsectionKind = 0x80000000
	DEBUG_S_SYMBOLS              SubsectionKind = 0xf1
	DEBUG_S_LINES                SubsectionKind = 0xf2
	DEBUG_S_STRINGTABLE          SubsectionKind = 0xf3
	DEBUG_S_FILECHKSMS           SubsectionKind = 0xf4
	DEBUG_S_FRAMEDATA            SubsectionKind = 0xf5
	DEBUG_S_INLINEELINES         SubsectionKind = 0xf6
	DEBUG_S_CROSSSCOPEIMPORTS    SubsectionKind = 0xf7
	DEBUG_S_CROSSSCOPEEXPORTS    SubsectionKind = 0xf8
	DEBUG_S_IL_LINES             SubsectionKind = 0xf9
	DEBUG_S_FUNC_MDTOKEN_MAP     SubsectionKind = 0xfa
	DEBUG_S_TYPE_MDTOKEN_MAP     SubsectionKind = 0xfb
	DEBUG_S_MERGED_ASSEMBLYINPUT SubsectionKind = 0xfc
	DEBUG_S_COFF_SYMBOL_RVA      SubsectionKind = 0xfd
)

func (k SubsectionKind) String() string {
	switch k &^ DEBUG_S_IGNORE {
	case DEBUG_S_SYMBOLS:
		return "DEBUG_S_SYMBOLS"
	case DEBUG_S_LINES:
		return "DEBUG_S_LINES"
	case DEBUG_S_STRINGTABLE:
		return "DEBUG_S_STRINGTABLE"
	case DEBUG_S_FILECHKSMS:
		return "DEBUG_S_FILECHKSMS"
	case DEBUG_S_FRAMEDATA:
		return "DEBUG_S_FRAMEDATA"
	case DEBUG_S_INLINEELINES:
		return "DEBUG_S_INLINEELINES"
	case DEBUG_S_CROSSSCOPEIMPORTS:
		return "DEBUG_S_CROSSSCOPEIMPORTS"
	case DEBUG_S_CROSSSCOPEEXPORTS:
		return "DEBUG_S_CROSSSCOPEEXPORTS"
	default:
		return fmt.Sprintf("DEBUG_S_0x%x", uint32(k))
	}
}
