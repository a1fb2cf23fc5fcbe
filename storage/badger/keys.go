package badger

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for different data types
const (
	documentRecordPrefix = "docrec"
	chunkRecordPrefix    = "chkrec"
	vectorDimensionKey   = "vecdim"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", documentRecordPrefix, id))
}

// makeChunkKey generates a composite key for a chunk.
// Format: prefix:documentID:position
// The position is written in BigEndian order so prefix iteration over a
// document's chunks yields position-ascending order.
func makeChunkKey(documentID string, position int) []byte {
	prefix := chunkRecordPrefix + ":" + documentID + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+4)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint32(buf[offset:], uint32(position))
	return buf
}

// makeChunkDocumentPrefix generates the key prefix shared by all chunks of
// a document.
func makeChunkDocumentPrefix(documentID string) []byte {
	return []byte(chunkRecordPrefix + ":" + documentID + ":")
}

// makeVectorDimensionKey generates the meta key holding the pinned index
// dimensionality.
func makeVectorDimensionKey() []byte {
	return []byte(vectorDimensionKey)
}

// encodeDimension serializes a vector dimensionality for the meta key.
func encodeDimension(dim int) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(dim))
	return buf
}

// decodeDimension deserializes a vector dimensionality from the meta key.
func decodeDimension(data []byte) int {
	if len(data) < 4 {
		return 0
	}
	return int(binary.BigEndian.Uint32(data))
}
