//go:build windows

package transport

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// segment is a named pagefile-backed file mapping. Names are scoped to
// the current session via the Local\ namespace.
type segment struct {
	handle windows.Handle
	mem    []byte
}

func mappingName(name string) *uint16 {
	n, _ := windows.UTF16PtrFromString(`Local\` + name)
	return n
}

func mapCreate(name string, size int) (*segment, error) {
	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil,
		windows.PAGE_READWRITE, 0, uint32(size), mappingName(name))
	if err != nil {
		return nil, err
	}
	return mapView(h, size)
}

func mapAttach(name string) (*segment, error) {
	h, err := windows.OpenFileMapping(windows.FILE_MAP_READ|windows.FILE_MAP_WRITE,
		false, mappingName(name))
	if err != nil {
		return nil, ErrSegmentNotFound
	}
	return mapView(h, 0)
}

// mapView maps the whole object; when size is 0 the region size is
// recovered with VirtualQuery.
func mapView(h windows.Handle, size int) (*segment, error) {
	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(h)
		return nil, err
	}
	if size == 0 {
		var info windows.MemoryBasicInformation
		if err := windows.VirtualQuery(addr, &info, unsafe.Sizeof(info)); err != nil {
			windows.UnmapViewOfFile(addr)
			windows.CloseHandle(h)
			return nil, err
		}
		size = int(info.RegionSize)
	}
	mem := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return &segment{handle: h, mem: mem}, nil
}

func segmentExists(name string) bool {
	h, err := windows.OpenFileMapping(windows.FILE_MAP_READ, false, mappingName(name))
	if err != nil {
		return false
	}
	windows.CloseHandle(h)
	return true
}

// unlink is a no-op on Windows: a named mapping disappears when its
// last handle closes.
func unlink(string) error { return nil }

func (s *segment) close() error {
	if s.mem == nil {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&s.mem[0]))
	s.mem = nil
	err := windows.UnmapViewOfFile(addr)
	windows.CloseHandle(s.handle)
	return err
}
