// Package uuidutil converts UUID filter values to the form a column stores.
package uuidutil

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Storage describes how a column holds UUID values.
type Storage int

const (
	// NotUUID columns are compared against values as given.
	NotUUID Storage = iota
	// Text columns use a native uuid type compared against the canonical string.
	Text
	// Binary columns store the 16 RFC-order bytes.
	Binary
)

// StorageOf classifies a physical column type such as "uuid" or "binary(16)".
func StorageOf(dataType string) Storage {
	dataType = strings.ToLower(strings.TrimSpace(dataType))
	if dataType == "uuid" {
		return Text
	}
	base, rest, ok := strings.Cut(dataType, "(")
	if !ok || strings.TrimSpace(strings.TrimSuffix(rest, ")")) != "16" {
		return NotUUID
	}
	switch strings.TrimSpace(base) {
	case "binary", "varbinary":
		return Binary
	}
	return NotUUID
}

// Parse parses common UUID string formats.
func Parse(raw string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid UUID value %q", raw)
	}
	return parsed, nil
}

// ToBytes returns UUID bytes in RFC order.
func ToBytes(u uuid.UUID) []byte {
	out := make([]byte, len(u))
	copy(out, u[:])
	return out
}
