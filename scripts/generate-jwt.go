//go:build ignore

// This script generates a JWT token for the optimizer HTTP API.
// Run with: go run scripts/generate-jwt.go
//
// Environment:
//
//	JWT_SECRET  signing secret, must match the server config (required)
//	JWT_ISSUER  token issuer (default "swap-middleware")
//	ROLE        user | bridge | admin (default "user")
//	ACTOR       hex address the token acts as (required for user/bridge)
//	TTL         token lifetime (default "1h")
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/omniroute/swap-middleware/pkg/auth"
)

func main() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is required")
		os.Exit(1)
	}

	issuerName := os.Getenv("JWT_ISSUER")
	if issuerName == "" {
		issuerName = "swap-middleware"
	}

	ttl := time.Hour
	if raw := os.Getenv("TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid TTL %q: %s\n", raw, err)
			os.Exit(1)
		}
		ttl = parsed
	}

	var cred auth.Credential
	switch role := os.Getenv("ROLE"); role {
	case "", "user":
		cred = auth.User(requireActor())
	case "bridge":
		cred = auth.Bridge(requireActor())
	case "admin":
		cred = auth.Admin()
	default:
		fmt.Fprintf(os.Stderr, "unknown ROLE %q: expected user, bridge or admin\n", role)
		os.Exit(1)
	}

	issuer, err := auth.NewTokenIssuer(secret, issuerName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating issuer: %s\n", err)
		os.Exit(1)
	}

	token, err := issuer.Issue(cred, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error issuing token: %s\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}

func requireActor() common.Address {
	raw := os.Getenv("ACTOR")
	if !common.IsHexAddress(raw) {
		fmt.Fprintf(os.Stderr, "ACTOR %q is not a valid hex address\n", raw)
		os.Exit(1)
	}
	return common.HexToAddress(raw)
}
