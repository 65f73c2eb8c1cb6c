// Admin helper: encrypts a credential value with the configured key so it
// can be seeded into m_provider_credentials by hand.
//
//	ENCRYPTION_KEY=<base64 32-byte key> go run ./cmd/utils <plaintext>
package main

import (
	"fmt"
	"log"
	"os"

	"quotecast-service/internal/infrastructure/crypto"

	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()

	if len(os.Args) < 2 {
		log.Fatal("usage: encrypt_credential <plaintext>")
	}

	key := os.Getenv("ENCRYPTION_KEY")
	if key == "" {
		log.Fatal("ENCRYPTION_KEY is not set")
	}

	cipher, err := crypto.NewCipher(key)
	if err != nil {
		log.Fatalf("invalid encryption key: %v", err)
	}

	encrypted, err := cipher.Encrypt(os.Args[1])
	if err != nil {
		log.Fatalf("encryption failed: %v", err)
	}

	fmt.Printf("\nEncrypted value:\n%s\n\n", encrypted)
}
