// Package layout defines the fixed-size binary structures of the multi-stream
// file (MSF) container and the program database streams stored in it.
//
// Every structure provides Bytes (serialize into a new slice), WriteTo (append
// to a pool.ByteBuffer) and Parse (decode from a slice). All multi-byte values
// are little-endian.
//
// # File Structure
//
// An MSF file is a sequence of fixed-size blocks. Streams are lists of blocks
// recorded in the stream directory:
//
//	┌─────────────────────────────────────────────────────────┐
//	│ Block 0: SuperBlock (56 bytes, rest zero)               │
//	├─────────────────────────────────────────────────────────┤
//	│ Block 1, 2: Free page maps (repeated every BlockSize    │
//	│ blocks at k*BlockSize+1 and k*BlockSize+2)              │
//	├─────────────────────────────────────────────────────────┤
//	│ Stream data blocks                                      │
//	├─────────────────────────────────────────────────────────┤
//	│ Stream directory blocks                                 │
//	│  - NumStreams, StreamSizes[], StreamBlocks[][]          │
//	├─────────────────────────────────────────────────────────┤
//	│ Block map block: indices of the directory blocks        │
//	└─────────────────────────────────────────────────────────┘
//
// # Stream Roles
//
//	Index | Stream
//	------|-------------------------------------------------
//	0     | Reserved (old directory), empty
//	1     | PDB info: InfoHeader + named stream map + features
//	2     | TPI: TpiHeader + type records
//	3     | DBI: DbiHeader + substreams
//	4     | IPI: TpiHeader + id records
//	5+    | Hash streams, symbol records, globals, publics,
//	      | section headers, module streams, /names, /LinkInfo
//
// # Header Formats
//
// SuperBlock (56 bytes):
//
//	Bytes  | Field             | Type     | Description
//	-------|-------------------|----------|------------------------------
//	0-31   | Magic             | [32]byte | "Microsoft C/C++ MSF 7.00\r\n\x1aDS\0\0\0"
//	32-35  | BlockSize         | uint32   | 512, 1024, 2048 or 4096
//	36-39  | FreeBlockMapBlock | uint32   | Active free page map (1 or 2)
//	40-43  | NumBlocks         | uint32   | Total blocks in the file
//	44-47  | NumDirectoryBytes | uint32   | Size of the stream directory
//	48-51  | Unknown           | uint32   | Always 0
//	52-55  | BlockMapAddr      | uint32   | Block listing directory blocks
//
// DbiHeader (64 bytes) carries the sizes of the substreams that follow it, in
// order: module info, section contributions, section map, file info, type
// server map, EC names, optional debug header.
//
// GSIHashHeader (16 bytes) precedes the hash records, the bucket bitmap and
// the bucket offsets of both the globals and the publics directory. The
// publics stream prepends a PublicsHeader (28 bytes) and appends the address
// map.
package layout
