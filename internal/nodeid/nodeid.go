// Package nodeid derives node identifiers from node content.
package nodeid

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Derive computes the node identifier for (org, typ, data).
// The result is "<org>#<hash>" where hash is a 128-bit hex digest of the type
// and the data, so identical content always maps to the same node.
//
// The type is length-prefixed and the data is hashed in a tagged encoding:
// byte slices raw, everything else as JSON (map keys sorted). The string "1"
// and the number 1 therefore derive different ids.
func Derive(org, typ string, data any) (string, error) {
	seed, err := canonical(data)
	if err != nil {
		return "", fmt.Errorf("encode node data: %w", err)
	}
	h := sha256.New()
	h.Write(binary.BigEndian.AppendUint64(nil, uint64(len(typ))))
	h.Write([]byte(typ))
	h.Write(seed)
	sum := h.Sum(nil)
	return Key(org, hex.EncodeToString(sum[:16])), nil
}

// Key joins an organization and a bare node id into a node key.
func Key(org, id string) string {
	return org + "#" + id
}

// Split separates a node key into organization and bare id.
// The id is everything after the last '#'.
func Split(node string) (org, id string, ok bool) {
	i := strings.LastIndexByte(node, '#')
	if i < 0 {
		return "", node, false
	}
	return node[:i], node[i+1:], true
}

const (
	tagBytes = 'b'
	tagJSON  = 'j'
)

func canonical(data any) ([]byte, error) {
	if v, ok := data.([]byte); ok {
		return append([]byte{tagBytes}, v...), nil
	}
	enc, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return append([]byte{tagJSON}, enc...), nil
}
