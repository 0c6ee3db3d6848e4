package proc

import (
	"encoding/binary"

	"exos/internal/defs"
)

// Executable image magic numbers (spec §4.4 step 1).
const (
	exosSignature = 0x534F5845 // "EXOS", little-endian
	elfMagic      = 0x464C457F // 0x7F 'E' 'L' 'F', little-endian
)

// EXOS chunk identifiers, grounded on
// original_source/kernel/source/Process.h's EXOS_CHUNK_* table. Only the
// chunks CreateProcess actually consumes are enumerated; the rest
// (resources, menus, icons, debug info, …) are skipped by size.
const (
	chunkInit  = 0x54494E49 // "INIT"
	chunkFixup = 0x50465846 // "FXUP" -- unused until dynamic linking exists
	chunkCode  = 0x45444F43 // "CODE"
	chunkData  = 0x41544144 // "DATA"
	chunkStack = 0x4B415453 // "STAK"
)

// Image is the parsed result of either executable format, the Go
// analogue of original_source's EXECUTABLEINFO plus the raw segment
// bytes CreateProcess copies into the new address space.
type Image struct {
	EntryPoint     uint32
	CodeBase       uint32
	CodeSize       uint32
	DataBase       uint32
	DataSize       uint32
	StackMinimum   uint32
	StackRequested uint32
	HeapMinimum    uint32
	HeapRequested  uint32

	Code []byte
	Data []byte
}

// defaults applied when an EXOS image's INIT chunk or an ELF image
// leaves a size field at zero.
const (
	defaultStackMinimum   = 16 * 1024
	defaultStackRequested = 64 * 1024
	defaultHeapMinimum    = 64 * 1024
	defaultHeapRequested  = 256 * 1024
)

// ParseImage discriminates the executable format by its leading 4-byte
// signature (spec §4.4 step 1) and dispatches to the matching parser.
func ParseImage(data []byte) (*Image, defs.Err_t) {
	if len(data) < 4 {
		return nil, -defs.EINVAL
	}
	sig := binary.LittleEndian.Uint32(data[0:4])
	switch sig {
	case exosSignature:
		return parseEXOS(data)
	case elfMagic:
		return parseELF32(data)
	default:
		return nil, -defs.EINVAL
	}
}

// parseEXOS walks the EXOS chunk-based format: a fixed EXOSHEADER
// followed by a sequence of { ID uint32, Size uint32, payload } chunks.
func parseEXOS(data []byte) (*Image, defs.Err_t) {
	const headerSize = 40 // EXOSHEADER: 10 uint32 fields
	if len(data) < headerSize {
		return nil, -defs.EINVAL
	}
	img := &Image{
		StackMinimum:   defaultStackMinimum,
		StackRequested: defaultStackRequested,
		HeapMinimum:    defaultHeapMinimum,
		HeapRequested:  defaultHeapRequested,
	}
	off := headerSize
	for off+8 <= len(data) {
		id := binary.LittleEndian.Uint32(data[off : off+4])
		size := binary.LittleEndian.Uint32(data[off+4 : off+8])
		body := off + 8
		if uint64(body)+uint64(size) > uint64(len(data)) {
			return nil, -defs.EINVAL
		}
		chunk := data[body : body+int(size)]
		switch id {
		case chunkInit:
			if len(chunk) < 36 {
				return nil, -defs.EINVAL
			}
			img.EntryPoint = binary.LittleEndian.Uint32(chunk[0:4])
			img.CodeBase = binary.LittleEndian.Uint32(chunk[4:8])
			img.CodeSize = binary.LittleEndian.Uint32(chunk[8:12])
			img.DataBase = binary.LittleEndian.Uint32(chunk[12:16])
			img.DataSize = binary.LittleEndian.Uint32(chunk[16:20])
			img.StackMinimum = binary.LittleEndian.Uint32(chunk[20:24])
			img.StackRequested = binary.LittleEndian.Uint32(chunk[24:28])
			img.HeapMinimum = binary.LittleEndian.Uint32(chunk[28:32])
			img.HeapRequested = binary.LittleEndian.Uint32(chunk[32:36])
		case chunkCode:
			img.Code = chunk
		case chunkData:
			img.Data = chunk
		case chunkStack, chunkFixup:
			// Stack sizing comes from the INIT chunk; fixups are unused
			// until dynamic linking exists.
		}
		off = body + int(size)
		if size%4 != 0 {
			off += 4 - int(size%4) // chunks are 4-byte aligned
		}
	}
	if img.CodeSize == 0 {
		return nil, -defs.EINVAL
	}
	return img, defs.ENONE
}

// elf32Header mirrors the fields of Elf32_Ehdr this parser needs.
type elf32Header struct {
	entry  uint32
	phoff  uint32
	phnum  uint16
	phsize uint16
}

const (
	ptLoad = 1
	pfX    = 1 << 0
	pfW    = 1 << 1
)

// parseELF32 reads just enough of the ELF32 program-header table to
// recover the PT_LOAD segments CreateProcess needs: one executable
// segment treated as code, one writable segment treated as data.
func parseELF32(data []byte) (*Image, defs.Err_t) {
	if len(data) < 52 {
		return nil, -defs.EINVAL
	}
	hdr := elf32Header{
		entry:  binary.LittleEndian.Uint32(data[24:28]),
		phoff:  binary.LittleEndian.Uint32(data[28:32]),
		phsize: binary.LittleEndian.Uint16(data[42:44]),
		phnum:  binary.LittleEndian.Uint16(data[44:46]),
	}
	img := &Image{
		EntryPoint:     hdr.entry,
		StackMinimum:   defaultStackMinimum,
		StackRequested: defaultStackRequested,
		HeapMinimum:    defaultHeapMinimum,
		HeapRequested:  defaultHeapRequested,
	}
	for i := 0; i < int(hdr.phnum); i++ {
		base := int(hdr.phoff) + i*int(hdr.phsize)
		if base+32 > len(data) {
			return nil, -defs.EINVAL
		}
		ptype := binary.LittleEndian.Uint32(data[base : base+4])
		if ptype != ptLoad {
			continue
		}
		poffset := binary.LittleEndian.Uint32(data[base+4 : base+8])
		pvaddr := binary.LittleEndian.Uint32(data[base+8 : base+12])
		pfilesz := binary.LittleEndian.Uint32(data[base+16 : base+20])
		pmemsz := binary.LittleEndian.Uint32(data[base+20 : base+24])
		pflags := binary.LittleEndian.Uint32(data[base+24 : base+28])
		if uint64(poffset)+uint64(pfilesz) > uint64(len(data)) {
			return nil, -defs.EINVAL
		}
		seg := data[poffset : poffset+pfilesz]
		if pflags&pfX != 0 {
			img.CodeBase = pvaddr
			img.CodeSize = pmemsz
			img.Code = seg
		} else if pflags&pfW != 0 {
			img.DataBase = pvaddr
			img.DataSize = pmemsz
			img.Data = seg
		}
	}
	if img.CodeSize == 0 {
		return nil, -defs.EINVAL
	}
	return img, defs.ENONE
}
