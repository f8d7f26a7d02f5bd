package layout

// SuperBlockMagic identifies an MSF 7.00 file.
const SuperBlockMagic = "Microsoft C/C++ MSF 7.00\r\n\x1aDS\x00\x00\x00"

// InvalidStreamIndex marks an absent stream in every stream-index field.
const InvalidStreamIndex = 0xffff

// CVSignatureC13 is the leading signature of .debug$S, .debug$T and module streams.
const CVSignatureC13 = 4

// Versions and signatures.
const (
	InfoVersionVC70     = 20000404
	InfoFeatureVC140    = 20140508
	TpiVersionV80       = 20040203
	DbiVersionV70       = 19990903
	DbiVersionSignature = 0xffffffff
	SectionContribVer60 = 0xeffe0000 + 19970605
	GSIHashSignature    = 0xffffffff
	GSIHashVersion      = 0xeffe0000 + 19990810
	StringTableMagic    = 0xeffeeffe
	StringTableHashV1   = 1
)

// Fixed sizes in bytes.
const (
	SuperBlockSize        = 56
	InfoHeaderSize        = 28
	TpiHeaderSize         = 56
	DbiHeaderSize         = 64
	ModInfoHeaderSize     = 64
	SectionContribSize    = 28
	SectionMapHeaderSize  = 4
	SectionMapEntrySize   = 20
	DbgHeaderEntries      = 11
	GSIHashHeaderSize     = 16
	GSIHashRecordSize     = 8
	PublicsHeaderSize     = 28
	StringTableHeaderSize = 12
)

// Type stream constants.
const (
	FirstTypeIndex         = 0x1000
	TpiHashBuckets         = 0x3ffff
	TpiHashKeySize         = 4
	TpiIndexOffsetInterval = 8 * 1024
)

// Globals/publics hash table constants.
const (
	GSIBuckets        = 4096
	GSIBitmapWords    = (GSIBuckets + 32) / 32
	GSIOffsetCalcSize = 12
)

// Section map entry flags.
const (
	SectionMapRead              = 0x0001
	SectionMapWrite             = 0x0002
	SectionMapExecute           = 0x0004
	SectionMapAddressIs32Bit    = 0x0008
	SectionMapIsSelector        = 0x0100
	SectionMapIsAbsoluteAddress = 0x0200
)

// Optional debug header slots.
const (
	DbgFPO = iota
	DbgException
	DbgFixup
	DbgOmapToSrc
	DbgOmapFromSrc
	DbgSectionHdr
	DbgTokenRidMap
	DbgXdata
	DbgPdata
	DbgNewFPO
	DbgSectionHdrOrig
)
