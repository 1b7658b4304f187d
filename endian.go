// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package radix

import "encoding/binary"

// Little-endian helpers for fixed-width values stored alongside tree
// payloads. The byte order is pinned rather than host-native so encoded
// values compare the same everywhere.

// EncodeUint64 returns v as 8 little-endian bytes.
func EncodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// DecodeUint64 reads a value written by EncodeUint64. The slice must hold
// at least 8 bytes.
func DecodeUint64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// AppendUint64 appends v to dst as 8 little-endian bytes.
func AppendUint64(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}
