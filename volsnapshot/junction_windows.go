//go:build windows

package volsnapshot

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// Junction creation follows the standard NTFS reparse-point recipe:
// create an empty directory, open it with backup semantics, then issue
// FSCTL_SET_REPARSE_POINT with a mount-point reparse buffer pointing at
// the shadow's device path. golang.org/x/sys/windows exposes the
// syscalls (CreateFile, DeviceIoControl) but not the REPARSE_DATA_BUFFER
// layout, so it is packed by hand below.
const (
	fsctlSetReparsePoint    = 0x000900A4
	fsctlDeleteReparsePoint = 0x000900AC
	reparseTagMountPoint    = 0xA0000003
	reparseDataBufferBase   = 16 // header before the mount-point-specific fields
)

func (d *vssDriver) MountJunction(ctx context.Context, snap *Snapshot, clientAccessiblePath string) error {
	if err := os.MkdirAll(clientAccessiblePath, 0o755); err != nil {
		return NewDriverError("MountJunction", fmt.Errorf("creating junction directory: %w", err))
	}

	target := snap.ShadowPath
	if target == "" {
		return NewDriverError("MountJunction", fmt.Errorf("snapshot %s has no device path", snap.ShadowID))
	}

	h, err := openReparseHandle(clientAccessiblePath)
	if err != nil {
		return NewDriverError("MountJunction", err)
	}
	defer windows.CloseHandle(h) //nolint:errcheck

	buf, err := buildMountPointBuffer(target)
	if err != nil {
		return NewDriverError("MountJunction", err)
	}

	var bytesReturned uint32

	if err := windows.DeviceIoControl(h, fsctlSetReparsePoint, &buf[0], uint32(len(buf)), nil, 0, &bytesReturned, nil); err != nil {
		return NewDriverError("MountJunction", fmt.Errorf("FSCTL_SET_REPARSE_POINT: %w", err))
	}

	snap.Junction = &JunctionInfo{
		LocalJunctionPath:    clientAccessiblePath,
		ClientAccessiblePath: clientAccessiblePath,
	}

	return nil
}

func (d *vssDriver) UnmountJunction(ctx context.Context, snap *Snapshot) error {
	if snap.Junction == nil {
		return nil
	}

	h, err := openReparseHandle(snap.Junction.LocalJunctionPath)
	if err != nil {
		return NewDriverError("UnmountJunction", err)
	}
	defer windows.CloseHandle(h) //nolint:errcheck

	hdr := make([]byte, reparseDataBufferBase)
	binary.LittleEndian.PutUint32(hdr[0:4], reparseTagMountPoint)

	var bytesReturned uint32
	if err := windows.DeviceIoControl(h, fsctlDeleteReparsePoint, &hdr[0], uint32(len(hdr)), nil, 0, &bytesReturned, nil); err != nil {
		return NewDriverError("UnmountJunction", fmt.Errorf("FSCTL_DELETE_REPARSE_POINT: %w", err))
	}

	return os.Remove(snap.Junction.LocalJunctionPath)
}

func openReparseHandle(path string) (windows.Handle, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}

	return windows.CreateFile(
		p,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_OPEN_REPARSE_POINT|windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
}

// buildMountPointBuffer packs a REPARSE_DATA_BUFFER for
// IO_REPARSE_TAG_MOUNT_POINT whose substitute name is the NT device path
// of target and whose print name is empty (spec.md §4.4: "create a junction
// inside the share so clients can reach it via the existing network
// mount").
func buildMountPointBuffer(target string) ([]byte, error) {
	name := `\??\` + target
	if name[len(name)-1] != '\\' {
		name += `\`
	}

	nameUTF16, err := windows.UTF16FromString(name)
	if err != nil {
		return nil, err
	}

	nameBytes := utf16ToBytes(nameUTF16[:len(nameUTF16)-1]) // drop the implicit NUL

	// Substitute name and print name share the same buffer back to
	// back, both empty print name per the well-known junction trick
	// (printed path omitted so Explorer shows the mount point's own
	// name rather than the device path).
	dataLen := 8 + len(nameBytes) + 2 + 2
	buf := make([]byte, reparseDataBufferBase+dataLen)

	binary.LittleEndian.PutUint32(buf[0:4], reparseTagMountPoint)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(dataLen))
	// buf[6:8] reserved, left zero

	binary.LittleEndian.PutUint16(buf[8:10], 0)                       // SubstituteNameOffset
	binary.LittleEndian.PutUint16(buf[10:12], uint16(len(nameBytes))) // SubstituteNameLength
	binary.LittleEndian.PutUint16(buf[12:14], uint16(len(nameBytes)+2))
	binary.LittleEndian.PutUint16(buf[14:16], 0) // PrintNameLength

	copy(buf[reparseDataBufferBase:], nameBytes)

	return buf, nil
}

func utf16ToBytes(u []uint16) []byte {
	b := make([]byte, len(u)*2)
	for i, v := range u {
		binary.LittleEndian.PutUint16(b[i*2:], v)
	}

	return b
}
