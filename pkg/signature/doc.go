// Package signature implements HMAC-SHA256 signing of webhook payloads and
// signing-secret generation.
//
// The signature is computed over the exact bytes sent as the HTTP request
// body and rendered as "sha256=" followed by the hex-encoded MAC, so
// receivers can verify it without any canonicalization step:
//
//	sig := signature.Sign(body, secret)
//	// sig == "sha256=5f37..."
//
// Receivers recompute the MAC over the raw body and compare in constant
// time:
//
//	if !signature.Verify(body, secret, sig) {
//	    // reject the request
//	}
//
// Secrets are 32 cryptographically random bytes, hex-encoded with a
// "whsec_" prefix (70 characters total):
//
//	secret := signature.GenerateSecret()
package signature
