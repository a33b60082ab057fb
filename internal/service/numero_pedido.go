package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	maxIntentosNumero = 100
	sufijoFallback    = 8 // base32 chars
)

// NumeroExistente is the existence check the generator runs against the ledger.
type NumeroExistente interface {
	ExistsNumero(ctx context.Context, numero string) (bool, error)
}

// GeneradorNumeroPedido issues human-readable order numbers of the form
// YYYYMMDD-NNNNNN. The suffix starts from the tenths of seconds elapsed today
// and never goes backwards within a process, so one process never repeats a
// number. Collisions with other processes are caught by ExistsNumero and
// resolved with a -DD disambiguator, then a random fallback.
type GeneradorNumeroPedido struct {
	repo NumeroExistente
	now  func() time.Time
	rand io.Reader

	mu     sync.Mutex
	fecha  string
	ultimo int
}

func NewGeneradorNumeroPedido(repo NumeroExistente) *GeneradorNumeroPedido {
	return &GeneradorNumeroPedido{repo: repo, now: time.Now, rand: rand.Reader}
}

// Generar performs reads only. It fails with ErrNumeroNoUnico instead of
// looping when even the random fallback is taken.
func (g *GeneradorNumeroPedido) Generar(ctx context.Context) (string, error) {
	now := g.now()
	fecha := now.Format("20060102")
	base := fmt.Sprintf("%s-%06d", fecha, g.siguiente(fecha, now))

	for i := 0; i < maxIntentosNumero; i++ {
		candidato := base
		if i > 0 {
			candidato = fmt.Sprintf("%s-%02d", base, i)
		}
		existe, err := g.repo.ExistsNumero(ctx, candidato)
		if err != nil {
			return "", fmt.Errorf("verificar número %s: %w", candidato, err)
		}
		if !existe {
			return candidato, nil
		}
	}

	sufijo, err := g.aleatorio()
	if err != nil {
		return "", err
	}
	fallback := fmt.Sprintf("%s-%s-%s", fecha, now.Format("150405"), sufijo)
	existe, err := g.repo.ExistsNumero(ctx, fallback)
	if err != nil {
		return "", fmt.Errorf("verificar número %s: %w", fallback, err)
	}
	if existe {
		return "", ErrNumeroNoUnico
	}
	return fallback, nil
}

func (g *GeneradorNumeroPedido) siguiente(fecha string, now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	if fecha != g.fecha {
		g.fecha = fecha
		g.ultimo = 0
	}
	y, m, d := now.Date()
	inicio := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	semilla := int(now.Sub(inicio) / (100 * time.Millisecond))

	if semilla <= g.ultimo {
		semilla = g.ultimo + 1
	}
	g.ultimo = semilla
	return semilla
}

func (g *GeneradorNumeroPedido) aleatorio() (string, error) {
	// 5 bytes → exactly 8 base32 chars, no padding
	buf := make([]byte, sufijoFallback*5/8)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("sufijo aleatorio: %w", err)
	}
	return base32.StdEncoding.EncodeToString(buf), nil
}
