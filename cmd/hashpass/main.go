// Command hashpass prints the bcrypt hash of a password, for seeding
// ADMIN_PASSWORD_HASH.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/example/trader-bot/internal/auth"
)

func main() {
	if len(os.Args) != 2 {
		log.Fatal("usage: hashpass <password>")
	}

	hash, err := auth.HashPassword(os.Args[1])
	if err != nil {
		log.Fatalf("hashpass: %v", err)
	}
	fmt.Println(hash)
}
