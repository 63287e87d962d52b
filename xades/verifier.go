package xades

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// Verifier checks enveloped XAdES-BES signatures produced by Signer.
type Verifier struct {
	roots         *x509.CertPool
	intermediates []*x509.Certificate
	clock         func() time.Time
}

type VerifierOption func(*Verifier)

// WithTrustRoots requires the signing certificate to chain to one of roots.
// Without it only the signature and the certificate binding are checked.
func WithTrustRoots(roots *x509.CertPool) VerifierOption {
	return func(v *Verifier) {
		v.roots = roots
	}
}

func WithIntermediates(certs ...*x509.Certificate) VerifierOption {
	return func(v *Verifier) {
		v.intermediates = append(v.intermediates, certs...)
	}
}

// WithClock sets the time used when the document carries no signing time.
func WithClock(clock func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.clock = clock
	}
}

func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{clock: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify reports whether signed carries a valid enveloped signature.
// ErrSignatureNotFound and ErrMalformedDocument are returned as errors;
// every other failure yields false.
func (v *Verifier) Verify(signed []byte) (bool, error) {
	err := v.Validate(signed)
	if err == nil {
		return true, nil
	}
	var rej *VerificationError
	if errors.As(err, &rej) {
		return false, nil
	}
	return false, err
}

// Validate is Verify with the rejection reason: nil on success, a
// *VerificationError on mismatch.
func (v *Verifier) Validate(signed []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signed); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("%w: no root element", ErrMalformedDocument)
	}

	sigs := childElements(root, NamespaceDSig, "Signature")
	switch len(sigs) {
	case 0:
		return ErrSignatureNotFound
	case 1:
	default:
		return rejected("multiple signatures")
	}
	sig := sigs[0]

	signedInfo := childElement(sig, NamespaceDSig, "SignedInfo")
	if signedInfo == nil {
		return rejected("missing SignedInfo")
	}
	if alg := algorithm(childElement(signedInfo, NamespaceDSig, "CanonicalizationMethod")); alg != AlgExclusiveC14N {
		return rejected("unsupported canonicalization %q", alg)
	}
	method, ok := signatureMethods[algorithm(childElement(signedInfo, NamespaceDSig, "SignatureMethod"))]
	if !ok {
		return rejected("unsupported signature method")
	}

	props, err := v.checkReferences(root, sig, signedInfo)
	if err != nil {
		return err
	}

	chain, err := embeddedCertificates(sig)
	if err != nil {
		return err
	}
	leaf := chain[0]

	signingTime, err := checkSigningCertificate(props, leaf)
	if err != nil {
		return err
	}
	if err := v.checkTrust(leaf, chain[1:], signingTime); err != nil {
		return err
	}

	value, err := base64.StdEncoding.DecodeString(strings.TrimSpace(textOf(childElement(sig, NamespaceDSig, "SignatureValue"))))
	if err != nil || len(value) == 0 {
		return rejected("malformed signature value")
	}
	canonicalInfo, err := canonicalize(signedInfo)
	if err != nil {
		return rejected("canonicalization failed")
	}
	return checkSignatureValue(leaf.PublicKey, method, digest(method.hash, canonicalInfo), value)
}

// checkReferences verifies the two references of SignedInfo and returns
// the resolved SignedProperties element.
func (v *Verifier) checkReferences(root, sig, signedInfo *etree.Element) (*etree.Element, error) {
	refs := childElements(signedInfo, NamespaceDSig, "Reference")
	if len(refs) != 2 {
		return nil, rejected("expected 2 references, found %d", len(refs))
	}

	var docRef, propsRef *etree.Element
	for _, ref := range refs {
		uri := ref.SelectAttr("URI")
		switch {
		case uri != nil && uri.Value == "" && ref.SelectAttr("Type") == nil:
			docRef = ref
		case uri != nil && strings.HasPrefix(uri.Value, "#") && ref.SelectAttrValue("Type", "") == TypeSignedProperties:
			propsRef = ref
		}
	}
	if docRef == nil || propsRef == nil {
		return nil, rejected("unexpected references")
	}

	if !hasTransforms(docRef, AlgEnveloped, AlgExclusiveC14N) {
		return nil, rejected("unsupported document transforms")
	}
	content, err := envelopedCanonical(root, sig)
	if err != nil {
		return nil, rejected("canonicalization failed")
	}
	if err := checkDigest(docRef, content); err != nil {
		return nil, err
	}

	id := strings.TrimPrefix(propsRef.SelectAttrValue("URI", ""), "#")
	props := findByID(sig, id)
	if props == nil || props.Tag != "SignedProperties" || props.NamespaceURI() != NamespaceXAdES {
		return nil, rejected("signed properties not found")
	}
	qualifying := props.Parent()
	if qualifying == nil || qualifying.Tag != "QualifyingProperties" ||
		qualifying.SelectAttrValue("Target", "") != "#"+sig.SelectAttrValue("Id", "") {
		return nil, rejected("qualifying properties do not target the signature")
	}
	if !hasTransforms(propsRef, AlgExclusiveC14N) && !hasTransforms(propsRef) {
		return nil, rejected("unsupported signed properties transforms")
	}
	canonicalProps, err := canonicalize(props)
	if err != nil {
		return nil, rejected("canonicalization failed")
	}
	if err := checkDigest(propsRef, canonicalProps); err != nil {
		return nil, err
	}
	return props, nil
}

func checkDigest(parent *etree.Element, content []byte) error {
	h, ok := digestFromURI(algorithm(childElement(parent, NamespaceDSig, "DigestMethod")))
	if !ok {
		return rejected("unsupported digest method")
	}
	expected, err := base64.StdEncoding.DecodeString(strings.TrimSpace(textOf(childElement(parent, NamespaceDSig, "DigestValue"))))
	if err != nil {
		return rejected("malformed digest value")
	}
	if !bytes.Equal(expected, digest(h, content)) {
		return rejected("digest mismatch")
	}
	return nil
}

func hasTransforms(ref *etree.Element, algs ...string) bool {
	var got []string
	if transforms := childElement(ref, NamespaceDSig, "Transforms"); transforms != nil {
		for _, t := range childElements(transforms, NamespaceDSig, "Transform") {
			got = append(got, t.SelectAttrValue("Algorithm", ""))
		}
	}
	if len(got) != len(algs) {
		return false
	}
	for i := range algs {
		if got[i] != algs[i] {
			return false
		}
	}
	return true
}

func embeddedCertificates(sig *etree.Element) ([]*x509.Certificate, error) {
	keyInfo := childElement(sig, NamespaceDSig, "KeyInfo")
	if keyInfo == nil {
		return nil, rejected("missing KeyInfo")
	}
	x509Data := childElement(keyInfo, NamespaceDSig, "X509Data")
	if x509Data == nil {
		return nil, rejected("missing X509Data")
	}

	var chain []*x509.Certificate
	for _, el := range childElements(x509Data, NamespaceDSig, "X509Certificate") {
		der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(el.Text()))
		if err != nil {
			return nil, rejected("malformed certificate encoding")
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, rejected("malformed certificate")
		}
		chain = append(chain, cert)
	}
	if len(chain) == 0 {
		return nil, rejected("no signing certificate")
	}
	return chain, nil
}

// checkSigningCertificate binds the SignedProperties to leaf and returns
// the declared signing time.
func checkSigningCertificate(props *etree.Element, leaf *x509.Certificate) (time.Time, error) {
	ssp := childElement(props, NamespaceXAdES, "SignedSignatureProperties")
	if ssp == nil {
		return time.Time{}, rejected("missing SignedSignatureProperties")
	}

	var signingTime time.Time
	if st := childElement(ssp, NamespaceXAdES, "SigningTime"); st != nil {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(st.Text()))
		if err != nil {
			return time.Time{}, rejected("malformed signing time")
		}
		signingTime = t
	}

	signingCert := childElement(ssp, NamespaceXAdES, "SigningCertificate")
	if signingCert == nil {
		return time.Time{}, rejected("missing SigningCertificate")
	}
	cert := childElement(signingCert, NamespaceXAdES, "Cert")
	if cert == nil {
		return time.Time{}, rejected("missing SigningCertificate")
	}

	certDigest := childElement(cert, NamespaceXAdES, "CertDigest")
	if certDigest == nil {
		return time.Time{}, rejected("missing CertDigest")
	}
	if err := checkDigest(certDigest, leaf.Raw); err != nil {
		return time.Time{}, rejected("signing certificate digest mismatch")
	}

	issuerSerial := childElement(cert, NamespaceXAdES, "IssuerSerial")
	if issuerSerial == nil {
		return time.Time{}, rejected("missing IssuerSerial")
	}
	if textOf(childElement(issuerSerial, NamespaceDSig, "X509IssuerName")) != leaf.Issuer.String() {
		return time.Time{}, rejected("signing certificate issuer mismatch")
	}
	serial, ok := new(big.Int).SetString(strings.TrimSpace(textOf(childElement(issuerSerial, NamespaceDSig, "X509SerialNumber"))), 10)
	if !ok || serial.Cmp(leaf.SerialNumber) != 0 {
		return time.Time{}, rejected("signing certificate serial mismatch")
	}
	return signingTime, nil
}

func (v *Verifier) checkTrust(leaf *x509.Certificate, embedded []*x509.Certificate, signingTime time.Time) error {
	at := signingTime
	if at.IsZero() {
		at = v.clock()
	}
	if at.Before(leaf.NotBefore) || at.After(leaf.NotAfter) {
		return rejected("signing certificate not valid at signing time")
	}
	if v.roots == nil {
		return nil
	}

	intermediates := x509.NewCertPool()
	for _, c := range v.intermediates {
		intermediates.AddCert(c)
	}
	for _, c := range embedded {
		intermediates.AddCert(c)
	}
	_, err := leaf.Verify(x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: intermediates,
		CurrentTime:   at,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return rejected("untrusted signing certificate")
	}
	return nil
}

func checkSignatureValue(pub crypto.PublicKey, method signatureMethod, d, value []byte) error {
	switch key := pub.(type) {
	case *ecdsa.PublicKey:
		if method.key != keyECDSA {
			return rejected("signature method does not match key")
		}
		size := (key.Curve.Params().BitSize + 7) / 8
		if len(value) != 2*size {
			return rejected("malformed signature value")
		}
		r := new(big.Int).SetBytes(value[:size])
		s := new(big.Int).SetBytes(value[size:])
		if !ecdsa.Verify(key, d, r, s) {
			return rejected("invalid signature value")
		}
	case *rsa.PublicKey:
		if method.key != keyRSA {
			return rejected("signature method does not match key")
		}
		if err := rsa.VerifyPKCS1v15(key, method.hash, d, value); err != nil {
			return rejected("invalid signature value")
		}
	default:
		return rejected("unsupported key type %T", pub)
	}
	return nil
}

func algorithm(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.SelectAttrValue("Algorithm", "")
}

func textOf(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.Text()
}
