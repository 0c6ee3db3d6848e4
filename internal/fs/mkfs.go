package fs

import (
	"exos/internal/defs"
	"exos/internal/storage"
)

// FormatExfs lays a fresh EXFS superblock, cluster bitmap, and empty
// root directory onto partition p of disk d. Exported for the future
// mkexfs CLI verb and exercised directly by this package's own tests,
// since the boot-time mount path only ever reads an already-formatted
// partition.
func FormatExfs(d *storage.Disk_t, p storage.Partition) defs.Err_t {
	sectorSize := d.Dev.SectorSize()
	if sectorSize == 0 || p.SectorCount < 8 {
		return -defs.EINVAL
	}

	const (
		superblockSector = 0
		bitmapStart      = 1
	)

	total := p.SectorCount
	bitmapSectors := uint32(1)
	var clusterCount uint32
	for {
		dataStart := bitmapStart + bitmapSectors + 1
		if uint64(dataStart) >= total {
			return -defs.ENOSPC
		}
		clusterCount = uint32(total) - dataStart
		need := ceilDiv(clusterCount, 8*sectorSize)
		if need == bitmapSectors {
			break
		}
		bitmapSectors = need
	}
	rootRecordSector := bitmapStart + bitmapSectors
	dataStartSector := rootRecordSector + 1

	sb := superblock{
		clusterSectors:   1,
		clusterCount:     clusterCount,
		bitmapSector:     bitmapStart,
		bitmapSectors:    bitmapSectors,
		rootRecordSector: rootRecordSector,
		dataStartSector:  dataStartSector,
	}

	sbBuf := make([]byte, sectorSize)
	sb.marshal(sbBuf)
	if err := storage.WriteSectors(d, p.StartSector+superblockSector, sbBuf); err != defs.ENONE {
		return err
	}

	bitmapBuf := make([]byte, uint64(bitmapSectors)*uint64(sectorSize))
	if err := storage.WriteSectors(d, p.StartSector+uint64(bitmapStart), bitmapBuf); err != defs.ENONE {
		return err
	}

	var root record
	root.SetName("/")
	root.SetFlags(dirFlagBit)
	root.SetClusters(nil)
	rootBuf := make([]byte, sectorSize)
	copy(rootBuf, root.buf[:])
	return storage.WriteSectors(d, p.StartSector+uint64(rootRecordSector), rootBuf)
}

func ceilDiv(n, d uint32) uint32 {
	if d == 0 {
		return 0
	}
	return (n + d - 1) / d
}
