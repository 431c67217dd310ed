// Package audit is the Auditor: canonicalizes and content-addresses every
// stage's evidence, writes it to the object store, and indexes it in
// Postgres (spec.md §4.5). Grounded on
// other_examples/20449496_bturcanu-OpenClause__pkg-evidence-store.go.go's
// CanonicalJSON + pgx transactional write pattern, and the teacher's
// internal/repositories pgx usage, generalized from a hash-chain to the
// spec's flat content-addressed bundle scheme.
package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// CanonicalJSON serializes v with sorted object keys, no HTML-escaping,
// and a single trailing newline, so the same logical payload always
// produces identical bytes (spec.md §4.5's "stable key order, UTF-8,
// newline-terminated"). original_source's audit service canonicalized
// inconsistently between write and verify; this implementation applies the
// same canonicalization on both paths, resolving that inconsistency in
// favor of the sorted-key scheme spec.md's prose describes.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("audit: marshal payload: %w", err)
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("audit: unmarshal for canonicalization: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, fmt.Errorf("audit: write canonical form: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v interface{}) error {
	encode := func(x interface{}) ([]byte, error) {
		var b bytes.Buffer
		enc := json.NewEncoder(&b)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(x); err != nil {
			return nil, err
		}
		return bytes.TrimSuffix(b.Bytes(), []byte("\n")), nil
	}

	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, err := encode(k)
			if err != nil {
				return err
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')

	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')

	default:
		encoded, err := encode(val)
		if err != nil {
			return err
		}
		buf.Write(encoded)
	}
	return nil
}

// Hash returns the hex-encoded SHA-256 digest of canonical bytes.
func Hash(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// unmarshalCanonicalObject parses a stored canonical-JSON object back into
// out, for re-canonicalization during verification.
func unmarshalCanonicalObject(raw []byte, out *map[string]interface{}) error {
	return json.Unmarshal(raw, out)
}
