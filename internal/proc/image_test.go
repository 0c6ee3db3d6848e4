package proc

import (
	"encoding/binary"
	"testing"

	"exos/internal/defs"
)

func putu32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

func buildEXOSImage(entry, codeBase uint32, code []byte, dataBase uint32, data []byte) []byte {
	hdr := make([]byte, 40)
	putu32(hdr, 0, exosSignature)
	putu32(hdr, 4, 1) // EXOS_TYPE_EXECUTABLE

	initBody := make([]byte, 36)
	putu32(initBody, 0, entry)
	putu32(initBody, 4, codeBase)
	putu32(initBody, 8, uint32(len(code)))
	putu32(initBody, 12, dataBase)
	putu32(initBody, 16, uint32(len(data)))
	putu32(initBody, 20, defaultStackMinimum)
	putu32(initBody, 24, defaultStackRequested)
	putu32(initBody, 28, defaultHeapMinimum)
	putu32(initBody, 32, defaultHeapRequested)

	var buf []byte
	buf = append(buf, hdr...)
	buf = append(buf, chunkHeader(chunkInit, initBody)...)
	buf = append(buf, chunkHeader(chunkCode, code)...)
	if len(data) > 0 {
		buf = append(buf, chunkHeader(chunkData, data)...)
	}
	return buf
}

func chunkHeader(id uint32, body []byte) []byte {
	h := make([]byte, 8)
	putu32(h, 0, id)
	putu32(h, 4, uint32(len(body)))
	out := append(h, body...)
	if pad := len(body) % 4; pad != 0 {
		out = append(out, make([]byte, 4-pad)...)
	}
	return out
}

func TestParseImageEXOS(t *testing.T) {
	code := []byte{0x90, 0x90, 0x90, 0xc3}
	data := []byte{1, 2, 3, 4, 5}
	raw := buildEXOSImage(0x400000, 0x400000, code, 0x500000, data)

	img, err := ParseImage(raw)
	if err != defs.ENONE {
		t.Fatalf("ParseImage() err = %v", err)
	}
	if img.EntryPoint != 0x400000 {
		t.Errorf("EntryPoint = %#x, want 0x400000", img.EntryPoint)
	}
	if img.CodeSize != uint32(len(code)) {
		t.Errorf("CodeSize = %d, want %d", img.CodeSize, len(code))
	}
	if string(img.Code) != string(code) {
		t.Errorf("Code = %v, want %v", img.Code, code)
	}
	if img.DataSize != uint32(len(data)) {
		t.Errorf("DataSize = %d, want %d", img.DataSize, len(data))
	}
	if img.StackMinimum != defaultStackMinimum {
		t.Errorf("StackMinimum = %d, want %d", img.StackMinimum, defaultStackMinimum)
	}
}

func TestParseImageRejectsUnknownSignature(t *testing.T) {
	_, err := ParseImage([]byte{0, 0, 0, 0, 1, 2, 3, 4})
	if err == defs.ENONE {
		t.Fatalf("ParseImage should reject an unrecognized signature")
	}
}

func TestParseImageRejectsShortInput(t *testing.T) {
	_, err := ParseImage([]byte{1, 2})
	if err == defs.ENONE {
		t.Fatalf("ParseImage should reject input shorter than any header")
	}
}

func buildELF32Image(entry, codeVA uint32, code []byte) []byte {
	const ehdrSize = 52
	const phdrSize = 32
	buf := make([]byte, ehdrSize+phdrSize+len(code))
	buf[0] = 0x7f
	buf[1] = 'E'
	buf[2] = 'L'
	buf[3] = 'F'
	putu32(buf, 24, entry)
	putu32(buf, 28, ehdrSize) // e_phoff
	binary.LittleEndian.PutUint16(buf[42:44], phdrSize)
	binary.LittleEndian.PutUint16(buf[44:46], 1) // one program header

	ph := buf[ehdrSize : ehdrSize+phdrSize]
	putu32(ph, 0, ptLoad)
	putu32(ph, 4, ehdrSize+phdrSize) // p_offset
	putu32(ph, 8, codeVA)            // p_vaddr
	putu32(ph, 16, uint32(len(code)))
	putu32(ph, 20, uint32(len(code)))
	putu32(ph, 24, pfX)

	copy(buf[ehdrSize+phdrSize:], code)
	return buf
}

func TestParseImageELF32(t *testing.T) {
	code := []byte{0xe9, 0x00, 0x00, 0x00, 0x00}
	raw := buildELF32Image(0x400010, 0x400000, code)

	img, err := ParseImage(raw)
	if err != defs.ENONE {
		t.Fatalf("ParseImage() err = %v", err)
	}
	if img.EntryPoint != 0x400010 {
		t.Errorf("EntryPoint = %#x, want 0x400010", img.EntryPoint)
	}
	if img.CodeBase != 0x400000 {
		t.Errorf("CodeBase = %#x, want 0x400000", img.CodeBase)
	}
	if string(img.Code) != string(code) {
		t.Errorf("Code = %v, want %v", img.Code, code)
	}
}
