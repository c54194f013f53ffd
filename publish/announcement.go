package publish

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/certforge/certforge/certificate"
	"github.com/certforge/certforge/internal/util"
	"github.com/certforge/certforge/issuer"
)

const announceContext = "CERTFORGE-ANNOUNCE"
const announceVer = 1

// Announcement is the payload broadcast to public log endpoints. It carries
// everything a third party needs to verify the certificate independently:
// the ID, the document hash, the issuer public key, and a verification URL
// that round-trips through the verifier.
type Announcement struct {
	AnnouncementID  string `json:"announcement_id"`
	CertificateID   string `json:"certificate_id"`
	DocumentHash    string `json:"document_hash,omitempty"`
	IssuerPublicKey string `json:"issuer_public_key"`
	Summary         string `json:"summary"`
	VerificationURL string `json:"verification_url"`
	Signature       string `json:"signature"`
}

// NewAnnouncement builds and signs an announcement for the record. The
// verification URL points at the document hash when one is bound, otherwise
// at the certificate ID.
func NewAnnouncement(identity *issuer.Identity, origin string, rec *certificate.Record) (*Announcement, error) {
	target := rec.ID
	if rec.DocumentHash != "" {
		target = rec.DocumentHash
	}
	ann := &Announcement{
		AnnouncementID:  uuid.NewString(),
		CertificateID:   rec.ID,
		DocumentHash:    rec.DocumentHash,
		IssuerPublicKey: identity.PublicKeyHex(),
		Summary: fmt.Sprintf("%s: %q awarded to %s on %s",
			rec.DisplayClass(), rec.CourseTitle, rec.SubjectName, rec.IssueDate),
		VerificationURL: origin + "/verify/" + target,
	}
	sig, err := identity.Sign(ann.signingPayload())
	if err != nil {
		return nil, fmt.Errorf("signing announcement: %w", err)
	}
	ann.Signature = util.HexEncode(sig)
	return ann, nil
}

// Verify checks the announcement signature against its embedded issuer key.
func (a *Announcement) Verify() (bool, error) {
	sig, err := util.HexDecode(a.Signature)
	if err != nil {
		return false, fmt.Errorf("decoding announcement signature: %w", err)
	}
	return issuer.VerifyAnnouncementSignature(a.IssuerPublicKey, a.signingPayload(), sig)
}

// signingPayload is the fixed-order, length-prefixed encoding the issuer
// signs. The signature field itself is excluded.
func (a *Announcement) signingPayload() []byte {
	var res []byte
	res = appendLenPrefix(res, []byte(announceContext))
	l := make([]byte, 4)
	binary.BigEndian.PutUint32(l, announceVer)
	res = append(res, l...)
	for _, s := range []string{a.AnnouncementID, a.CertificateID, a.DocumentHash, a.IssuerPublicKey, a.Summary, a.VerificationURL} {
		res = appendLenPrefix(res, []byte(s))
	}
	return res
}

func appendLenPrefix(b, data []byte) []byte {
	l := make([]byte, 4)
	binary.BigEndian.PutUint32(l, uint32(len(data)))
	b = append(b, l...)
	return append(b, data...)
}
