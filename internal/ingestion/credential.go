package ingestion

import "math/rand"

// CredentialLength is the length of generated author credentials
const CredentialLength = 20

const credentialAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateCredential returns n characters drawn uniformly from [0-9a-zA-Z].
// The source is math/rand: imported authors are attribution placeholders
// that never sign in, and stores keep only a bcrypt hash.
func GenerateCredential(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = credentialAlphabet[rand.Intn(len(credentialAlphabet))]
	}
	return string(b)
}
