package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokengen mints HS256 access tokens accepted by the roles API, for local
// development and smoke testing against a running instance.
func main() {
	secret := flag.String("secret", "very-secure-jwt-secret", "Secret key for signing the token")
	userID := flag.Int("user-id", 1, "ID of the user the token is issued for")
	displayName := flag.String("display-name", "", "Display name claim")
	roles := flag.String("roles", "", "Comma-separated role names")
	superUser := flag.Bool("superuser", false, "Mark the token holder as a superuser")
	expiry := flag.Duration("expiry", 30*time.Minute, "Token expiry duration (e.g., 30m, 1h, 24h)")
	outputFormat := flag.String("format", "compact", "Output format: compact, full, or debug")
	flag.Parse()

	var roleNames []string
	for _, name := range strings.Split(*roles, ",") {
		if name = strings.TrimSpace(name); name != "" {
			roleNames = append(roleNames, name)
		}
	}

	now := time.Now()
	expiryTime := now.Add(*expiry)
	claims := jwt.MapClaims{
		"sub":       strconv.Itoa(*userID),
		"iat":       now.Unix(),
		"exp":       expiryTime.Unix(),
		"jti":       uuid.NewString(),
		"user_id":   *userID,
		"superuser": *superUser,
	}
	if *displayName != "" {
		claims["display_name"] = *displayName
	}
	if len(roleNames) > 0 {
		claims["roles"] = roleNames
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString([]byte(*secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to sign token: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "compact":
		fmt.Println(tokenStr)
	case "full":
		fmt.Printf("Token: %s\nExpires: %s\n", tokenStr, expiryTime.Format(time.RFC3339))
	case "debug":
		fmt.Printf("=== Token Information ===\n")
		fmt.Printf("Token: %s\n\n", tokenStr)
		fmt.Printf("=== Token Header ===\n")
		headerJSON, _ := json.MarshalIndent(token.Header, "", "  ")
		fmt.Printf("%s\n\n", headerJSON)
		fmt.Printf("=== Token Claims ===\n")
		claimsJSON, _ := json.MarshalIndent(claims, "", "  ")
		fmt.Printf("%s\n\n", claimsJSON)
		fmt.Printf("Expires: %s\n", expiryTime.Format(time.RFC3339))
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown output format: %s\n", *outputFormat)
		os.Exit(1)
	}
}
