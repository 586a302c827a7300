package storage

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/janelia-flyem/tsdf/core"
)

// Key prefixes.  Block keys sort by volume and then by z, y, x of the block.
const (
	formatKeyPrefix   byte = 0x00
	nameKeyPrefix     byte = 0x01
	metadataKeyPrefix byte = 0x02
	blockKeyPrefix    byte = 0x03
)

func formatKey() []byte {
	return []byte{formatKeyPrefix}
}

func nameKey(name string) []byte {
	return append([]byte{nameKeyPrefix}, name...)
}

func namePrefix() []byte {
	return []byte{nameKeyPrefix}
}

func metadataKey(id uuid.UUID) []byte {
	return append([]byte{metadataKeyPrefix}, id[:]...)
}

func blockPrefix(id uuid.UUID) []byte {
	return append([]byte{blockKeyPrefix}, id[:]...)
}

func blockKey(id uuid.UUID, key core.ChunkPoint3d) []byte {
	return append(blockPrefix(id), key.SortableBytes()...)
}

// blockFromKey returns the block coordinate of a block key.
func blockFromKey(k []byte) (core.ChunkPoint3d, error) {
	if len(k) != 1+16+core.ChunkPoint3dSize || k[0] != blockKeyPrefix {
		return core.ChunkPoint3d{}, fmt.Errorf("bad block key %x", k)
	}
	return core.ChunkPoint3dFromSortable(k[17:])
}
