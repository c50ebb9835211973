// Command jobpilot-keygen prints a fresh base64 encryption key suitable
// for ENCRYPTION_KEY.
package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/jobpilot/jobpilot/internal/crypto"
)

func main() {
	key, err := crypto.RandBytes(crypto.KeySize)
	if err != nil {
		fmt.Fprintln(os.Stderr, "keygen:", err)
		os.Exit(1)
	}
	fmt.Println(base64.StdEncoding.EncodeToString(key))
}
