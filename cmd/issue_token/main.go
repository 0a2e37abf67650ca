// Command issue_token prints a session token for a configured signer, for
// driving the API with curl during development.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"colorsnap/internal/chain"
	"colorsnap/internal/service"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	addrFlag := flag.String("address", "", "signer address (default: first key in SIGNER_KEYS)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET not set")
	}
	service.InitJWT(secret)

	keys, err := chain.ParseKeyRing(strings.Split(os.Getenv("SIGNER_KEYS"), ","))
	if err != nil {
		log.Fatalf("parse SIGNER_KEYS: %v", err)
	}

	var addr common.Address
	if *addrFlag != "" {
		addr, err = chain.ParseAddress(*addrFlag)
		if err != nil {
			log.Fatalf("address: %v", err)
		}
		if !keys.Has(addr) {
			log.Fatalf("%s is not in SIGNER_KEYS", addr.Hex())
		}
	} else {
		all := keys.Addresses()
		if len(all) == 0 {
			log.Fatal("no signer configured")
		}
		addr = all[0]
	}

	token, err := service.GenerateJWT(addr, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "address: %s\n", addr.Hex())
	fmt.Println(token)
}
