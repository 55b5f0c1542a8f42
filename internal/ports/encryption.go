package ports

// EncryptionService encrypts credential material before it is persisted.
// Only the storage layer sees ciphertext; domain objects always carry
// plaintext credentials.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
