package certificate

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"

	"github.com/certforge/certforge/internal/util"
)

// payloadContext domain-separates certificate signatures from any other
// SHA-256 use in the system.
const payloadContext = "CERTFORGE-SIGN"

// payloadVer is baked into the canonical encoding. Bump only with a migration
// plan: every historical signature verifies against the encoding it was
// created with.
const payloadVer = 1

// canonicalPayload builds the fixed-order, length-prefixed encoding of the
// signed fields. Two equal field sets always yield byte-identical output
// regardless of how the caller assembled them: strings are Unicode-normalized,
// the class default is substituted here, and every element carries a length
// prefix so no concatenation ambiguity exists.
func canonicalPayload(id string, f Fields) []byte {
	class := f.CertificateClass
	if class == "" {
		class = DefaultClass
	}
	var res []byte
	res = appendLenPrefix(res, []byte(payloadContext))
	res = appendUint32(res, payloadVer)
	for _, s := range []string{id, f.SubjectName, f.CourseTitle, f.CohortLabel, class, f.IssueDate} {
		res = appendLenPrefix(res, []byte(util.Normalize(s)))
	}
	return res
}

func appendLenPrefix(b, data []byte) []byte {
	l := make([]byte, 4)
	binary.BigEndian.PutUint32(l, uint32(len(data)))
	b = append(b, l...)
	return append(b, data...)
}

func appendUint32(b []byte, v uint32) []byte {
	l := make([]byte, 4)
	binary.BigEndian.PutUint32(l, v)
	return append(b, l...)
}

// Sign computes the certificate signature: a hex-encoded SHA-256 digest of the
// canonical payload. This is tamper-evidence, not authentication: anyone can
// recompute it, and no issuer-held secret enters the digest.
func Sign(id string, f Fields) string {
	sum := sha256.Sum256(canonicalPayload(id, f))
	return util.HexEncode(sum[:])
}

// VerifySignature recomputes the signature over the record's stored fields and
// compares it to the stored signature.
func VerifySignature(rec *Record) bool {
	expected := Sign(rec.ID, rec.SignedFields())
	return subtle.ConstantTimeCompare([]byte(expected), []byte(rec.Signature)) == 1
}

// DocumentHash computes the content hash of rendered document bytes: a
// hex-encoded SHA-256 digest of the exact byte sequence. Renderers must be
// byte-deterministic or hash-based verification breaks across re-renders.
func DocumentHash(doc []byte) string {
	sum := sha256.Sum256(doc)
	return util.HexEncode(sum[:])
}
