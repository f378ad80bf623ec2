package recorder

import (
	"errors"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/disk"
)

// Free-space thresholds. Below LowSpaceThreshold a recording is refused;
// below DiskLowThreshold a live recording is reported as running out.
const (
	LowSpaceThreshold = 512 * 1024
	DiskLowThreshold  = 10 * 1024 * 1024
)

var (
	ErrStorageUnavailable  = errors.New("recording storage unavailable")
	ErrStorageInsufficient = errors.New("insufficient storage for recording")
	ErrStorageWriteFailed  = errors.New("recording write failed")
	ErrEncoderInternal     = errors.New("encoder internal error")
	ErrDiskLow             = errors.New("recording disk space low")
)

// DiskProbe reports free bytes on the filesystem holding path.
type DiskProbe interface {
	Free(path string) (uint64, error)
}

var diskUsageFunc = disk.Usage

// SystemProbe asks the OS through gopsutil.
type SystemProbe struct{}

func (SystemProbe) Free(path string) (uint64, error) {
	u, err := diskUsageFunc(path)
	if err != nil {
		return 0, fmt.Errorf("disk usage of %s: %w", path, err)
	}
	return u.Free, nil
}

// checkStorage is the pre-flight run before a session is created.
func checkStorage(probe DiskProbe, root string) error {
	fi, err := os.Stat(root)
	if err != nil || !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrStorageUnavailable, root)
	}
	free, err := probe.Free(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if free < LowSpaceThreshold {
		return fmt.Errorf("%w: %d bytes free", ErrStorageInsufficient, free)
	}
	return nil
}
