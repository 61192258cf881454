package external

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"os"
	"strings"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/keiri-audit/engine/internal/blockerr"
)

// SignAlgo selects the asymmetric scheme used by SignManifest.
type SignAlgo string

const (
	AlgoEd25519 SignAlgo = "ed25519"
	AlgoRSA     SignAlgo = "rsa"
)

// SignManifestRequest is the input to SignManifest.
type SignManifestRequest struct {
	Manifest map[string]any `json:"manifest"`
	KeyRef   string         `json:"key_ref"`
	Algo     SignAlgo       `json:"algo"`
}

// SignManifestResult is the output of SignManifest.
type SignManifestResult struct {
	Signature      string         `json:"signature"`
	SignedManifest map[string]any `json:"signed_manifest"`
}

// SignManifest signs the canonical (key-sorted) JSON encoding of manifest
// with the private key PEM found in the environment variable named by
// key_ref. The PEM is parsed via jwx's key importer; the raw scheme
// signature (not a JWS envelope) is base64-encoded into the result so the
// signed_manifest stays plain JSON with an added _signature entry.
func SignManifest(req SignManifestRequest) (SignManifestResult, error) {
	keyRef := req.KeyRef
	if keyRef == "" {
		keyRef = "SIGNING_KEY"
	}
	algo := req.Algo
	if algo == "" {
		algo = AlgoEd25519
	}
	if algo != AlgoEd25519 && algo != AlgoRSA {
		return SignManifestResult{}, blockerr.New(blockerr.ConfigInvalid, "unsupported algo: "+string(algo))
	}

	pem := os.Getenv(keyRef)
	if strings.TrimSpace(pem) == "" {
		return SignManifestResult{}, blockerr.New(blockerr.ConfigMissing, "private key not found for "+keyRef)
	}

	data, err := canonicalJSON(req.Manifest)
	if err != nil {
		return SignManifestResult{}, blockerr.NewInputError("manifest", "JSON-serializable map", req.Manifest)
	}

	key, err := jwk.ParseKey([]byte(pem), jwk.WithPEM(true))
	if err != nil {
		return SignManifestResult{}, blockerr.New(blockerr.BlockExecutionFailed, "failed to parse private key: "+err.Error())
	}
	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return SignManifestResult{}, blockerr.New(blockerr.BlockExecutionFailed, "failed to extract raw key: "+err.Error())
	}

	var sig []byte
	switch algo {
	case AlgoEd25519:
		priv, ok := raw.(ed25519.PrivateKey)
		if !ok {
			return SignManifestResult{}, blockerr.New(blockerr.BlockExecutionFailed, "key_ref does not hold an Ed25519 private key")
		}
		sig = ed25519.Sign(priv, data)
	case AlgoRSA:
		priv, ok := raw.(*rsa.PrivateKey)
		if !ok {
			return SignManifestResult{}, blockerr.New(blockerr.BlockExecutionFailed, "key_ref does not hold an RSA private key")
		}
		digest := sha256.Sum256(data)
		sig, err = rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
		if err != nil {
			return SignManifestResult{}, blockerr.New(blockerr.BlockExecutionFailed, "rsa signing failed: "+err.Error())
		}
	default:
		return SignManifestResult{}, blockerr.New(blockerr.ConfigInvalid, "unsupported algo: "+string(algo))
	}

	sigB64 := base64.StdEncoding.EncodeToString(sig)
	signed := make(map[string]any, len(req.Manifest)+1)
	for k, v := range req.Manifest {
		signed[k] = v
	}
	signed["_signature"] = map[string]any{"algo": string(algo), "key_ref": keyRef, "sig": sigB64}

	return SignManifestResult{Signature: sigB64, SignedManifest: signed}, nil
}

func canonicalJSON(v map[string]any) ([]byte, error) {
	return json.Marshal(v)
}
