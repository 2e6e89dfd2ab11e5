// Command hashkey generates an admin key and its bcrypt hash for
// STOREGATE_ADMIN_KEY_HASH. With an argument it hashes the supplied key
// instead of generating one.
package main

import (
	"fmt"
	"os"

	"storegate/internal/session/secrets"
)

func main() {
	key := ""
	if len(os.Args) > 1 {
		key = os.Args[1]
	} else {
		generated, err := secrets.Generate()
		if err != nil {
			fmt.Fprintln(os.Stderr, "could not generate key:", err)
			os.Exit(1)
		}
		key = generated
		fmt.Println("admin key:", key)
	}

	hash, err := secrets.Hash(key)
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not hash key:", err)
		os.Exit(1)
	}
	fmt.Println("STOREGATE_ADMIN_KEY_HASH:", hash)
}
