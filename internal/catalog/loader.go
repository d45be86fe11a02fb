package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML catalog and validates it.
// Unknown fields fail the load so typos never pass silently.
func Load(path string) (*Catalog, *Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML
func Parse(data []byte) (*Catalog, *Snapshot, error) {
	var cat Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&cat); err != nil {
		return nil, nil, fmt.Errorf("decode catalog: %w", err)
	}

	if err := Validate(&cat); err != nil {
		return nil, nil, err
	}

	hash, err := Hash(&cat)
	if err != nil {
		return nil, nil, err
	}

	return &cat, &Snapshot{
		Hash:      hash,
		Tests:     len(cat.Tests),
		Variants:  len(cat.Variants()),
		LoadedAt:  time.Now(),
		SourceLen: len(data),
	}, nil
}

// Hash is the SHA-256 of the catalog's canonical JSON
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(cat *Catalog) (string, error) {
	jsonBytes, err := json.Marshal(cat)
	if err != nil {
		return "", fmt.Errorf("hash catalog: %w", err)
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
