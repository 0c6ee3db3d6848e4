package storage

import "hash/crc64"

// crcTable is built from the stdlib's ECMA-182 polynomial
// (0xC96C5795D7870F42), which is bit-for-bit the same constant
// original_source/kernel/source/utils/CRC64.c hard-codes as
// CRC64_Poly; no third-party checksum package is needed since the
// standard library already implements this exact algorithm.
var crcTable = crc64.MakeTable(crc64.ECMA)

// Checksum computes the CRC64-ECMA digest of data, the supplemental
// feature original_source's CRC64_Hash provides for superblock and
// partition-table integrity checks.
func Checksum(data []byte) uint64 {
	return crc64.Checksum(data, crcTable)
}

// HashString mirrors original_source's HashString helper, used to
// derive a stable id from a volume or user name.
func HashString(s string) uint64 {
	return Checksum([]byte(s))
}
