//go:build wasip1

package guest

import "unsafe"

// readBytes copies length bytes starting at offset out of the module's
// own linear memory. Guest code runs in the same address space it
// describes, so this is a direct unsafe.Pointer read rather than a
// call through an engine Memory API.
func readBytes(offset, length uint32) []byte {
	if length == 0 {
		return nil
	}
	src := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(offset))), length)
	out := make([]byte, length)
	copy(out, src)
	return out
}

// writeBytes copies data into linear memory starting at offset. The
// caller is responsible for having reserved at least len(data) bytes
// at offset, normally via alloc.Global().Alloc.
func writeBytes(offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(offset))), len(data))
	copy(dst, data)
}
