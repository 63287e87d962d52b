package xades

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"
	"strings"
)

// Namespaces and algorithm identifiers
const (
	NamespaceDSig  = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXAdES = "http://uri.etsi.org/01903/v1.3.2#"

	AlgExclusiveC14N = "http://www.w3.org/2001/10/xml-exc-c14n#"
	AlgEnveloped     = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"

	TypeSignedProperties = "http://uri.etsi.org/01903#SignedProperties"

	prefixDSig  = "ds"
	prefixXAdES = "xades"
)

// DigestAlgorithm names a reference and certificate digest algorithm.
type DigestAlgorithm string

const (
	SHA256 DigestAlgorithm = "sha256"
	SHA384 DigestAlgorithm = "sha384"
	SHA512 DigestAlgorithm = "sha512"
)

var digestURIs = map[DigestAlgorithm]string{
	SHA256: "http://www.w3.org/2001/04/xmlenc#sha256",
	SHA384: "http://www.w3.org/2001/04/xmldsig-more#sha384",
	SHA512: "http://www.w3.org/2001/04/xmlenc#sha512",
}

var digestHashes = map[DigestAlgorithm]crypto.Hash{
	SHA256: crypto.SHA256,
	SHA384: crypto.SHA384,
	SHA512: crypto.SHA512,
}

// ParseDigestAlgorithm accepts sha256, sha384 or sha512 in any case.
func ParseDigestAlgorithm(s string) (DigestAlgorithm, error) {
	d := DigestAlgorithm(strings.ToLower(strings.ReplaceAll(s, "-", "")))
	if _, ok := digestHashes[d]; !ok {
		return "", fmt.Errorf("unsupported digest algorithm %q", s)
	}
	return d, nil
}

func (d DigestAlgorithm) URI() string {
	return digestURIs[d]
}

func (d DigestAlgorithm) Hash() crypto.Hash {
	return digestHashes[d]
}

func digestFromURI(uri string) (crypto.Hash, bool) {
	for alg, u := range digestURIs {
		if u == uri {
			return digestHashes[alg], true
		}
	}
	return 0, false
}

func digest(h crypto.Hash, data []byte) []byte {
	hh := h.New()
	hh.Write(data)
	return hh.Sum(nil)
}

type keyAlgorithm int

const (
	keyECDSA keyAlgorithm = iota + 1
	keyRSA
)

type signatureMethod struct {
	key  keyAlgorithm
	hash crypto.Hash
}

var signatureMethods = map[string]signatureMethod{
	"http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256": {keyECDSA, crypto.SHA256},
	"http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha384": {keyECDSA, crypto.SHA384},
	"http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha512": {keyECDSA, crypto.SHA512},
	"http://www.w3.org/2001/04/xmldsig-more#rsa-sha256":   {keyRSA, crypto.SHA256},
	"http://www.w3.org/2001/04/xmldsig-more#rsa-sha384":   {keyRSA, crypto.SHA384},
	"http://www.w3.org/2001/04/xmldsig-more#rsa-sha512":   {keyRSA, crypto.SHA512},
}

func signatureMethodURI(pub crypto.PublicKey, h crypto.Hash) (string, error) {
	var key keyAlgorithm
	switch pub.(type) {
	case *ecdsa.PublicKey:
		key = keyECDSA
	case *rsa.PublicKey:
		key = keyRSA
	default:
		return "", fmt.Errorf("unsupported key type %T", pub)
	}
	for uri, m := range signatureMethods {
		if m.key == key && m.hash == h {
			return uri, nil
		}
	}
	return "", fmt.Errorf("no signature method for %T with %v", pub, h)
}
