package collector

import (
	"context"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"

	"github.com/vitalis-app/sentinel/internal/models"
)

// pseudoFSTypes are virtual and network filesystems excluded from local
// disk usage.
var pseudoFSTypes = map[string]bool{
	// Virtual / system filesystems
	"devfs":         true,
	"autofs":        true,
	"nullfs":        true,
	"tmpfs":         true,
	"sysfs":         true,
	"proc":          true,
	"procfs":        true,
	"devtmpfs":      true,
	"cgroup":        true,
	"cgroup2":       true,
	"overlay":       true,
	"squashfs":      true,
	"fuse.snapfuse": true,
	"nsfs":          true,
	"pstore":        true,
	"debugfs":       true,
	"tracefs":       true,
	"securityfs":    true,
	"configfs":      true,
	"fusectl":       true,
	"mqueue":        true,
	"hugetlbfs":     true,
	"binfmt_misc":   true,
	"efivarfs":      true,
	"bpf":           true,
	"ramfs":         true,

	// Network / remote filesystems
	"nfs":           true,
	"nfs4":          true,
	"cifs":          true,
	"smbfs":         true,
	"fuse.sshfs":    true,
	"fuse.rclone":   true,
	"9p":            true,
	"afs":           true,
	"ncpfs":         true,
	"glusterfs":     true,
	"lustre":        true,
	"ceph":          true,
	"fuse.ceph":     true,
	"gpfs":          true,
	"pvfs2":         true,
	"fuse.s3fs":     true,
	"fuse.gcsfuse":  true,
	"fuse.blobfuse": true,
	"davfs2":        true,
}

// isSystemMount reports macOS system volumes and other OS-internal mounts.
func isSystemMount(mount string) bool {
	systemPrefixes := []string{
		"/System/Volumes/",
		"/private/var/vm",
	}
	for _, prefix := range systemPrefixes {
		if strings.HasPrefix(mount, prefix) {
			return true
		}
	}
	return false
}

// DiskCollector reports utilisation across local volumes and the megabytes
// read and written since the previous collection.
type DiskCollector struct {
	logger *zap.Logger

	mu          sync.Mutex
	lastRead    uint64
	lastWrite   uint64
	initialized bool
}

// NewDiskCollector creates a new disk collector.
func NewDiskCollector(logger *zap.Logger) *DiskCollector {
	return &DiskCollector{logger: logger.Named("disk")}
}

// Name returns the collector identifier.
func (c *DiskCollector) Name() string { return "disk" }

// Collect returns disk_percent and disk_total_mb summed over local volumes,
// plus read_mb and write_mb deltas. IO counters are optional: if they cannot
// be read only the usage keys are returned.
func (c *DiskCollector) Collect(ctx context.Context) (map[string]float64, error) {
	used, total, err := c.usage(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, 4)
	if total > 0 {
		out[models.KeyDisk] = float64(used) / float64(total) * 100
		out[models.KeyDiskTotalMB] = float64(total) / mb
	}

	read, write, err := c.io(ctx)
	if err != nil {
		c.logger.Debug("Disk IO counters unavailable", zap.Error(err))
		return out, nil
	}
	out[models.KeyReadMB] = read
	out[models.KeyWriteMB] = write
	return out, nil
}

func (c *DiskCollector) usage(ctx context.Context) (used, total uint64, err error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return 0, 0, err
	}

	seen := make(map[string]bool)
	for _, p := range partitions {
		if pseudoFSTypes[p.Fstype] {
			c.logger.Debug("Skipping pseudo/network filesystem",
				zap.String("mount", p.Mountpoint),
				zap.String("fstype", p.Fstype))
			continue
		}
		if isSystemMount(p.Mountpoint) {
			continue
		}
		// the same device mounted twice counts once
		if seen[p.Device] {
			continue
		}

		u, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil || u.Total == 0 {
			continue
		}
		seen[p.Device] = true
		used += u.Used
		total += u.Total
	}
	return used, total, nil
}

func (c *DiskCollector) io(ctx context.Context) (readMB, writeMB float64, err error) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	var read, write uint64
	for _, ctr := range counters {
		read += ctr.ReadBytes
		write += ctr.WriteBytes
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var dRead, dWrite uint64
	if c.initialized {
		dRead = delta(read, c.lastRead)
		dWrite = delta(write, c.lastWrite)
	}
	c.lastRead, c.lastWrite, c.initialized = read, write, true
	return float64(dRead) / mb, float64(dWrite) / mb, nil
}

// IsAvailable returns true: disk metrics exist on every platform.
func (c *DiskCollector) IsAvailable() bool { return true }

const (
	kb = 1024.0
	mb = 1024.0 * 1024.0
)

// delta returns cur-prev, or 0 when a counter has been reset.
func delta(cur, prev uint64) uint64 {
	if cur < prev {
		return 0
	}
	return cur - prev
}
