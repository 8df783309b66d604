// Copyright 2025 Certen Protocol
//
// Commitment hashing - the cryptographic root of the commit-reveal
// binding guarantee. HashOf is the canonical function every client and
// the coordinator's reveal verifier must agree on; FastHashDev exists
// for local development only and MUST NOT be used against adversarial
// users (spec §4.2).

package commitment

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/certen/fair-sequencer/pkg/batch"
)

// HashOf computes the canonical commitment digest for a transaction and
// nonce: a fixed-field-order byte encoding of
// (to, value, data, gasLimit, gasPrice, nonce) concatenated with the
// nonce string, hashed with SHA-256 and hex-encoded with a 0x prefix.
func HashOf(tx batch.TransactionData, nonce string) string {
	return HashBytes(encode(tx, nonce))
}

// Verify reports whether recomputing HashOf(tx, nonce) equals hash.
func Verify(hash string, tx batch.TransactionData, nonce string) bool {
	return HashOf(tx, nonce) == hash
}

// encode canonicalizes a transaction payload to a stable byte
// encoding: field order to, value, data, gasLimit, gasPrice, nonce;
// to, value, data and gasPrice are length-prefixed and gasLimit and
// nonce are fixed-width integers, so no field's contents can bleed into
// another's boundary; concatenated with the off-chain nonce string.
func encode(tx batch.TransactionData, nonce string) []byte {
	var buf []byte
	buf = appendField(buf, []byte(tx.To))
	if tx.Value != nil {
		buf = appendField(buf, tx.Value.Bytes())
	} else {
		buf = appendField(buf, nil)
	}
	buf = appendField(buf, tx.Data)
	buf = appendUint64(buf, tx.GasLimit)
	if tx.GasPrice != nil {
		buf = appendField(buf, tx.GasPrice.Bytes())
	} else {
		buf = appendField(buf, nil)
	}
	buf = appendUint64(buf, tx.Nonce)
	buf = append(buf, []byte(nonce)...)
	return buf
}

func appendField(buf, field []byte) []byte {
	buf = appendUint64(buf, uint64(len(field)))
	return append(buf, field...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// HashBytes returns the hex-encoded, 0x-prefixed SHA-256 digest of data.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return "0x" + hex.EncodeToString(h[:])
}

// fnvOffset and fnvPrime are the 32-bit FNV-1a constants used by
// FastHashDev.
const (
	fnvOffset uint32 = 2166136261
	fnvPrime  uint32 = 16777619
)

// FastHashDev is a non-cryptographic 32-bit rolling hash intended only
// for development/testing contexts where SHA-256's cost is undesirable
// and no adversary is present. It MUST NOT be used to verify reveals
// against real users (spec §4.2).
func FastHashDev(tx batch.TransactionData, nonce string) uint32 {
	h := fnvOffset
	for _, b := range encode(tx, nonce) {
		h ^= uint32(b)
		h *= fnvPrime
	}
	return h
}

// ==========================================================================
// Canonical JSON helpers, used for non-binding, human/debug-facing
// payloads (request audit logging in pkg/server) where deterministic
// encoding aids reproducibility but is not part of the cryptographic
// binding computed by HashOf above.
// ==========================================================================

// CanonicalizeJSON takes arbitrary JSON bytes and returns a canonical
// encoding with deterministically sorted object keys; arrays retain
// their original order. Numbers are decoded as json.Number rather than
// float64 so large uint64 fields (gas limits, tx nonces) survive the
// round trip without losing precision.
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(canonicalizeValue(v))
}

func canonicalizeValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(map[string]interface{}, len(vv))
		for _, k := range keys {
			ordered[k] = canonicalizeValue(vv[k])
		}
		return ordered
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, e := range vv {
			out[i] = canonicalizeValue(e)
		}
		return out
	default:
		return vv
	}
}
