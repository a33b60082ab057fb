// cmd/gentoken/main.go: Emite un JWT de desarrollo firmado con JWT_SECRET.
// Uso: go run ./cmd/gentoken -rol mesero -user ana -mesas 1,2,3
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"restorant/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func main() {
	rol := flag.String("rol", middleware.RolMesero, "mesero | cajero | administrador")
	user := flag.String("user", "dev", "username")
	mesas := flag.String("mesas", "", "sección del mesero, separada por comas (vacío = todas)")
	ttl := flag.Duration("ttl", 8*time.Hour, "vigencia del token")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET no definido")
		os.Exit(1)
	}

	now := time.Now()
	claims := middleware.JWTClaims{
		UserID:   uuid.NewString(),
		Username: *user,
		Rol:      *rol,
		Mesas:    seccion(*mesas),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	fmt.Println(signed)
}

func seccion(s string) []string {
	var out []string
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	return out
}
