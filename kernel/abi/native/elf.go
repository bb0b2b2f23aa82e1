// Package native implements Scarlet's own ABI: a trimmed ELF64 loader and
// a syscall table keyed directly on the task's own syscall numbers
// (rather than translating to/from a foreign convention, as
// linuxriscv64 does). The loader hand-rolls the ELF64 header and
// program-header layout rather than depending on a host toolchain's ELF
// library: this parses a binary format we define and control, not a
// third-party wire protocol, so there is no ecosystem library being
// passed over.
package native

import (
	"encoding/binary"

	"github.com/scarletkernel/scarlet/pkg/kerr"
)

const elfHeaderSize = 64
const programHeaderSize64 = 56

var elfMagic = [4]byte{0x7F, 'E', 'L', 'F'}

const (
	elfClass64     = 2
	elfData2LSB    = 1
	elfData2MSB    = 2
	programTypeLoad = 1
)

// Segment permission flags, matching the ELF program header's p_flags.
const (
	SegmentExec  = 1
	SegmentWrite = 2
	SegmentRead  = 4
)

// Header is the subset of the ELF64 file header the loader needs.
type Header struct {
	LittleEndian bool
	Type         uint16
	Machine      uint16
	Entry        uint64
	PhOff        uint64
	PhEntSize    uint16
	PhNum        uint16
}

// ProgramHeader is one ELF64 program header table entry.
type ProgramHeader struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	Vaddr  uint64
	Filesz uint64
	Memsz  uint64
}

// IsLoad reports whether this is a PT_LOAD (loadable) segment.
func (p ProgramHeader) IsLoad() bool { return p.Type == programTypeLoad }

// ParseHeader parses buf as an ELF64 header.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < elfHeaderSize {
		return Header{}, kerr.ErrInvalidData
	}
	if buf[0] != elfMagic[0] || buf[1] != elfMagic[1] || buf[2] != elfMagic[2] || buf[3] != elfMagic[3] {
		return Header{}, kerr.ErrInvalidData
	}
	class := buf[4]
	dataEnc := buf[5]
	if class != elfClass64 {
		return Header{}, kerr.ErrNotSupported
	}
	littleEndian := dataEnc == elfData2LSB
	order := byteOrder(littleEndian)

	return Header{
		LittleEndian: littleEndian,
		Type:         order.Uint16(buf[16:18]),
		Machine:      order.Uint16(buf[18:20]),
		Entry:        order.Uint64(buf[24:32]),
		PhOff:        order.Uint64(buf[32:40]),
		PhEntSize:    order.Uint16(buf[54:56]),
		PhNum:        order.Uint16(buf[56:58]),
	}, nil
}

// ParseProgramHeader parses buf as one ELF64 program header entry.
func ParseProgramHeader(buf []byte, littleEndian bool) (ProgramHeader, error) {
	if len(buf) < programHeaderSize64 {
		return ProgramHeader{}, kerr.ErrInvalidData
	}
	order := byteOrder(littleEndian)
	return ProgramHeader{
		Type:   order.Uint32(buf[0:4]),
		Flags:  order.Uint32(buf[4:8]),
		Offset: order.Uint64(buf[8:16]),
		Vaddr:  order.Uint64(buf[16:24]),
		Filesz: order.Uint64(buf[32:40]),
		Memsz:  order.Uint64(buf[40:48]),
	}, nil
}

func byteOrder(littleEndian bool) binary.ByteOrder {
	if littleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Reader is the minimal seek+read surface the loader needs from an open
// file.
type Reader interface {
	Read(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
}

// LoadedSegment describes one segment the loader placed, for the
// caller's VM-mapping bookkeeping.
type LoadedSegment struct {
	Vaddr uint64
	Data  []byte
	Memsz uint64
	Flags uint32
}

// Load reads f's ELF64 header and PT_LOAD program headers, returning the
// entry point and each loadable segment's file-backed bytes (zero-padded
// to Memsz is the caller's job once it has committed the mapping, since
// only the caller's VM manager knows how to place anonymous zero pages).
func Load(f Reader) (entry uint64, segments []LoadedSegment, err error) {
	if _, err = f.Seek(0, 0); err != nil {
		return 0, nil, err
	}
	headerBuf := make([]byte, elfHeaderSize)
	if _, err = readFull(f, headerBuf); err != nil {
		return 0, nil, err
	}
	hdr, err := ParseHeader(headerBuf)
	if err != nil {
		return 0, nil, err
	}

	for i := uint16(0); i < hdr.PhNum; i++ {
		offset := int64(hdr.PhOff) + int64(i)*int64(hdr.PhEntSize)
		if _, err = f.Seek(offset, 0); err != nil {
			return 0, nil, err
		}
		phBuf := make([]byte, hdr.PhEntSize)
		if _, err = readFull(f, phBuf); err != nil {
			return 0, nil, err
		}
		ph, err := ParseProgramHeader(phBuf, hdr.LittleEndian)
		if err != nil {
			return 0, nil, err
		}
		if !ph.IsLoad() {
			continue
		}
		if _, err = f.Seek(int64(ph.Offset), 0); err != nil {
			return 0, nil, err
		}
		data := make([]byte, ph.Filesz)
		if _, err = readFull(f, data); err != nil {
			return 0, nil, err
		}
		segments = append(segments, LoadedSegment{
			Vaddr: ph.Vaddr,
			Data:  data,
			Memsz: ph.Memsz,
			Flags: ph.Flags,
		})
	}
	return hdr.Entry, segments, nil
}

func readFull(r Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, kerr.ErrIoError
		}
	}
	return total, nil
}
