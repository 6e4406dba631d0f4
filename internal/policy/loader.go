package policy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML policy file and returns it with the raw bytes
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Load(path string) (Policy, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, nil, fmt.Errorf("read policy file: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return Policy{}, data, err
	}
	return p, data, nil
}

// Parse decodes and validates a YAML policy document
func Parse(data []byte) (Policy, error) {
	var p Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&p); err != nil {
		return Policy{}, fmt.Errorf("decode policy: %w", err)
	}

	if err := Validate(p); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// LoadOrDefault loads path, or returns Default when path is empty
func LoadOrDefault(path string) (Policy, error) {
	if path == "" {
		return Default(), nil
	}
	p, _, err := Load(path)
	return p, err
}

// Hash generates SHA256 hash from the policy (canonical JSON)
// 주의: map 대신 struct 사용으로 해시 재현성 보장
func Hash(p Policy) (string, error) {
	jsonBytes, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// Stamp ties a run to the exact constants that produced its verdict
type Stamp struct {
	PolicyID string `json:"policy_id"`
	Version  string `json:"version"`
	Hash     string `json:"hash"`
}

// NewStamp creates a stamp for response metadata
func NewStamp(p Policy) (Stamp, error) {
	hash, err := Hash(p)
	if err != nil {
		return Stamp{}, err
	}

	return Stamp{
		PolicyID: p.Meta.PolicyID,
		Version:  p.Meta.Version,
		Hash:     hash,
	}, nil
}
