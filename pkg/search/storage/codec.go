package storage

import (
	"encoding/json"
	"errors"
	"fmt"
)

const CurrentSchemaVersion = 1

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeArchive(s ArchiveSnapshot) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeArchive(data []byte) (ArchiveSnapshot, error) {
	var s ArchiveSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return ArchiveSnapshot{}, err
	}
	if s.SchemaVersion != CurrentSchemaVersion {
		return ArchiveSnapshot{}, fmt.Errorf("%w: schema %d", ErrVersionMismatch, s.SchemaVersion)
	}
	return s, nil
}
