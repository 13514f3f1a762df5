// Package cipher encrypts secrets kept in the database, such as TOTP seeds
// and OAuth refresh tokens, with AES-256-GCM.
//
//	c, err := cipher.FromEnv() // reads HASAD_DATA_KEY
//	sealed, err := c.Encrypt([]byte(userID), []byte(secret))
//	plain, err := c.Decrypt([]byte(userID), sealed)
//
// Generate a key with "hasadctl data-key generate".
package cipher
