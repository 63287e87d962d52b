package xades

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// Signer produces enveloped XAdES-BES signatures.
type Signer struct {
	key         crypto.Signer
	Certificate *x509.Certificate
	Chain       []*x509.Certificate
	Digest      DigestAlgorithm

	method string
	clock  func() time.Time
}

type SignerOption func(*Signer)

// WithChain embeds intermediate certificates after the signing certificate in KeyInfo.
func WithChain(certs ...*x509.Certificate) SignerOption {
	return func(s *Signer) {
		s.Chain = append(s.Chain, certs...)
	}
}

// WithSigningClock overrides the source of xades:SigningTime.
func WithSigningClock(clock func() time.Time) SignerOption {
	return func(s *Signer) {
		s.clock = clock
	}
}

type publicKey interface {
	Equal(crypto.PublicKey) bool
}

func NewSigner(key crypto.Signer, cert *x509.Certificate, digest DigestAlgorithm, opts ...SignerOption) (*Signer, error) {
	if key == nil || cert == nil {
		return nil, errors.New("signing key and certificate are required")
	}
	if _, ok := digestHashes[digest]; !ok {
		return nil, fmt.Errorf("unsupported digest algorithm %q", digest)
	}

	pub, ok := key.Public().(publicKey)
	if !ok || !pub.Equal(cert.PublicKey) {
		return nil, errors.New("signing key does not match certificate")
	}

	method, err := signatureMethodURI(key.Public(), digest.Hash())
	if err != nil {
		return nil, err
	}

	s := &Signer{
		key:         key,
		Certificate: cert,
		Digest:      digest,
		method:      method,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sign appends an enveloped ds:Signature as the last child of the document
// root and returns the serialized result. The returned bytes must not be
// altered afterwards: every byte inside the root element is signed.
func (s *Signer) Sign(document []byte) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(document); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedDocument)
	}
	if childElement(root, NamespaceDSig, "Signature") != nil {
		return nil, ErrAlreadySigned
	}

	h := s.Digest.Hash()

	content, err := envelopedCanonical(root, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize document: %w", err)
	}
	documentDigest := digest(h, content)

	id := uuid.NewString()
	sigID := "Signature-" + id
	propsID := "SignedProperties-" + id

	sig := root.CreateElement(prefixDSig + ":Signature")
	sig.CreateAttr("xmlns:"+prefixDSig, NamespaceDSig)
	sig.CreateAttr("Id", sigID)

	signedInfo := sig.CreateElement(prefixDSig + ":SignedInfo")
	signedInfo.CreateElement(prefixDSig+":CanonicalizationMethod").CreateAttr("Algorithm", AlgExclusiveC14N)
	signedInfo.CreateElement(prefixDSig+":SignatureMethod").CreateAttr("Algorithm", s.method)

	docRef := signedInfo.CreateElement(prefixDSig + ":Reference")
	docRef.CreateAttr("URI", "")
	transforms := docRef.CreateElement(prefixDSig + ":Transforms")
	transforms.CreateElement(prefixDSig+":Transform").CreateAttr("Algorithm", AlgEnveloped)
	transforms.CreateElement(prefixDSig+":Transform").CreateAttr("Algorithm", AlgExclusiveC14N)
	s.digestElements(docRef, documentDigest)

	propsRef := signedInfo.CreateElement(prefixDSig + ":Reference")
	propsRef.CreateAttr("Type", TypeSignedProperties)
	propsRef.CreateAttr("URI", "#"+propsID)
	propsRef.CreateElement(prefixDSig+":Transforms").
		CreateElement(prefixDSig+":Transform").CreateAttr("Algorithm", AlgExclusiveC14N)
	propsDigestMethod := propsRef.CreateElement(prefixDSig + ":DigestMethod")
	propsDigestMethod.CreateAttr("Algorithm", s.Digest.URI())
	propsDigestValue := propsRef.CreateElement(prefixDSig + ":DigestValue")

	signatureValue := sig.CreateElement(prefixDSig + ":SignatureValue")

	x509Data := sig.CreateElement(prefixDSig + ":KeyInfo").CreateElement(prefixDSig + ":X509Data")
	for _, cert := range append([]*x509.Certificate{s.Certificate}, s.Chain...) {
		x509Data.CreateElement(prefixDSig + ":X509Certificate").SetText(base64.StdEncoding.EncodeToString(cert.Raw))
	}

	qualifying := sig.CreateElement(prefixDSig + ":Object").CreateElement(prefixXAdES + ":QualifyingProperties")
	qualifying.CreateAttr("xmlns:"+prefixXAdES, NamespaceXAdES)
	qualifying.CreateAttr("Target", "#"+sigID)
	props := qualifying.CreateElement(prefixXAdES + ":SignedProperties")
	props.CreateAttr("Id", propsID)
	s.signedSignatureProperties(props)

	canonicalProps, err := canonicalize(props)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize signed properties: %w", err)
	}
	propsDigestValue.SetText(base64.StdEncoding.EncodeToString(digest(h, canonicalProps)))

	canonicalInfo, err := canonicalize(signedInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize signed info: %w", err)
	}
	value, err := s.signDigest(digest(h, canonicalInfo))
	if err != nil {
		return nil, err
	}
	signatureValue.SetText(base64.StdEncoding.EncodeToString(value))

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize signed document: %w", err)
	}
	return out, nil
}

func (s *Signer) digestElements(parent *etree.Element, value []byte) {
	parent.CreateElement(prefixDSig+":DigestMethod").CreateAttr("Algorithm", s.Digest.URI())
	parent.CreateElement(prefixDSig + ":DigestValue").SetText(base64.StdEncoding.EncodeToString(value))
}

func (s *Signer) signedSignatureProperties(props *etree.Element) {
	ssp := props.CreateElement(prefixXAdES + ":SignedSignatureProperties")
	ssp.CreateElement(prefixXAdES + ":SigningTime").SetText(s.clock().UTC().Format(time.RFC3339))

	cert := ssp.CreateElement(prefixXAdES + ":SigningCertificate").CreateElement(prefixXAdES + ":Cert")
	s.digestElements(cert.CreateElement(prefixXAdES+":CertDigest"), digest(s.Digest.Hash(), s.Certificate.Raw))

	issuerSerial := cert.CreateElement(prefixXAdES + ":IssuerSerial")
	issuerSerial.CreateElement(prefixDSig + ":X509IssuerName").SetText(s.Certificate.Issuer.String())
	issuerSerial.CreateElement(prefixDSig + ":X509SerialNumber").SetText(s.Certificate.SerialNumber.String())
}

// signDigest returns a PKCS#1 v1.5 signature for RSA keys and the raw r||s
// encoding for ECDSA keys.
func (s *Signer) signDigest(d []byte) ([]byte, error) {
	sig, err := s.key.Sign(rand.Reader, d, s.Digest.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}

	pub, ok := s.key.Public().(*ecdsa.PublicKey)
	if !ok {
		return sig, nil
	}

	var parsed struct {
		R, S *big.Int
	}
	if _, err := asn1.Unmarshal(sig, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode ECDSA signature: %w", err)
	}
	size := (pub.Curve.Params().BitSize + 7) / 8
	raw := make([]byte, 2*size)
	parsed.R.FillBytes(raw[:size])
	parsed.S.FillBytes(raw[size:])
	return raw, nil
}
