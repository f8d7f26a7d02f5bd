package modstream

import (
	"cmp"
	"context"
	"slices"

	"github.com/Masterminds/semver/v3"

	"github.com/arloliu/pdbgen/endian"
	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/input"
	"github.com/arloliu/pdbgen/internal/pool"
	"github.com/arloliu/pdbgen/msf"
)

// Names recorded for the synthetic linker module.
const (
	LinkerModuleName = "* Linker *"
	ToolName         = "pdbgen"
)

// cvLanguageLink is CV_CFL_LINK, the S_COMPILE3 language of linker output.
const cvLanguageLink = 0x07

// sectionAlignLog2 is the alignment recorded in S_SECTION: output sections
// are page aligned.
const sectionAlignLog2 = 12

// CoffGroup is a named run of input sections inside one output section, such
// as ".text$mn" or ".CRT$XCU".
type CoffGroup struct {
	Name            string
	Section         uint16 // 1-based output section
	Offset          uint32
	Size            uint32
	Characteristics uint32
}

// LinkerInfo is what the synthetic linker module describes.
type LinkerInfo struct {
	Machine  format.Machine
	Version  *semver.Version // nil records 0.0.0
	Env      input.Environment
	Sections []input.OutputSection
	Groups   []CoffGroup
}

// CoffGroups groups the retained sections of every module by output section
// and input section name. Each group spans from its lowest to its highest
// placed section. Groups are ordered by output section and offset.
func CoffGroups(modules []*input.Module) []CoffGroup {
	type key struct {
		section uint16
		name    string
	}

	index := map[key]int{}
	var groups []CoffGroup
	for _, m := range modules {
		for i := range m.Sections {
			sec := &m.Sections[i]
			if !sec.Retained() {
				continue
			}

			k := key{section: sec.OutputSection, name: sec.Name}
			gi, ok := index[k]
			if !ok {
				index[k] = len(groups)
				groups = append(groups, CoffGroup{
					Name:            sec.Name,
					Section:         sec.OutputSection,
					Offset:          sec.OutputOffset,
					Size:            sec.Size,
					Characteristics: sec.Characteristics,
				})

				continue
			}

			g := &groups[gi]
			end := max(g.Offset+g.Size, sec.OutputOffset+sec.Size)
			g.Offset = min(g.Offset, sec.OutputOffset)
			g.Size = end - g.Offset
			g.Characteristics |= sec.Characteristics
		}
	}

	slices.SortFunc(groups, func(a, b CoffGroup) int {
		if c := cmp.Compare(a.Section, b.Section); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Offset, b.Offset); c != 0 {
			return c
		}

		return cmp.Compare(a.Name, b.Name)
	})

	return groups
}

// TransformLinker writes the stream of the synthetic linker module, the
// index-th module of the image:
//
//	S_OBJNAME, S_COMPILE3, S_ENVBLOCK, then per output section one S_SECTION
//	followed by the S_COFFGROUP records placed in it.
//
// The linker module has no types, scopes or line information.
func (t *Transformer) TransformLinker(ctx context.Context, index int, info LinkerInfo, out *msf.Stream) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms := &moduleState{
		t:      t,
		s:      &Scanned{module: &input.Module{Path: LinkerModuleName, LinkerGenerated: true}, index: index, checksums: -1},
		result: &Result{Module: index},
	}

	a := &ms.arena
	a.add(format.S_OBJNAME, objNameSymbol(LinkerModuleName), noScope)
	a.add(format.S_COMPILE3, compileSymbol(info.Machine, info.Version), noScope)
	a.add(format.S_ENVBLOCK, envBlockSymbol(info.Env), noScope)

	groups := info.Groups
	for i, sec := range info.Sections {
		number := uint16(i + 1) //nolint: gosec
		a.add(format.S_SECTION, sectionSymbol(number, sec), noScope)

		for len(groups) > 0 && groups[0].Section <= number {
			if groups[0].Section == number {
				a.add(format.S_COFFGROUP, coffGroupSymbol(groups[0]), noScope)
			}
			groups = groups[1:]
		}
	}
	ms.result.Records = len(a.nodes)

	if err := ms.writeStream(out, a.offsets(), nil); err != nil {
		return nil, err
	}

	return ms.result, nil
}

func objNameSymbol(name string) []byte {
	payload := endian.GetLittleEndianEngine().AppendUint32(nil, 0) // signature
	return endian.AppendCString(payload, name)
}

func compileSymbol(machine format.Machine, version *semver.Version) []byte {
	var major, minor, patch uint16
	if version != nil {
		major = uint16(min(version.Major(), 0xffff)) //nolint: gosec
		minor = uint16(min(version.Minor(), 0xffff)) //nolint: gosec
		patch = uint16(min(version.Patch(), 0xffff)) //nolint: gosec
	}

	bb := pool.GetRecordBuffer()
	defer pool.PutRecordBuffer(bb)

	bb.WriteUint32(cvLanguageLink)
	bb.WriteUint16(machine.CPUType())
	for range 2 { // front end, back end
		bb.WriteUint16(major)
		bb.WriteUint16(minor)
		bb.WriteUint16(patch)
		bb.WriteUint16(0) // QFE
	}
	bb.WriteCString(ToolName)

	return slices.Clone(bb.Bytes())
}

// envBlockSymbol lists key/value pairs describing the link, terminated by an
// empty string.
func envBlockSymbol(env input.Environment) []byte {
	payload := []byte{0} // flags
	for _, kv := range [][2]string{
		{"cwd", env.WorkDir},
		{"exe", env.ProgramPath},
		{"out", env.OutputPath},
		{"pdb", env.PDBPath},
		{"cmd", env.CommandLine},
	} {
		payload = endian.AppendCString(payload, kv[0])
		payload = endian.AppendCString(payload, kv[1])
	}

	return append(payload, 0)
}

func sectionSymbol(number uint16, sec input.OutputSection) []byte {
	engine := endian.GetLittleEndianEngine()
	payload := engine.AppendUint16(nil, number)
	payload = append(payload, sectionAlignLog2, 0)
	payload = engine.AppendUint32(payload, sec.VirtualAddress)
	payload = engine.AppendUint32(payload, sec.VirtualSize)
	payload = engine.AppendUint32(payload, sec.Characteristics)

	return endian.AppendCString(payload, sec.Name)
}

func coffGroupSymbol(g CoffGroup) []byte {
	engine := endian.GetLittleEndianEngine()
	payload := engine.AppendUint32(nil, g.Size)
	payload = engine.AppendUint32(payload, g.Characteristics)
	payload = engine.AppendUint32(payload, g.Offset)
	payload = engine.AppendUint16(payload, g.Section)

	return endian.AppendCString(payload, g.Name)
}
