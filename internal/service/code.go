package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"github.com/arcadenet/netplay/internal/repository"
)

// maxCodeAttempts bounds collision retries so a saturated code space fails
// loudly instead of looping.
const maxCodeAttempts = 10

var ErrCodeSpaceExhausted = errors.New("unique code exhausted")

// RandFunc returns a uniform integer in [0, n).
type RandFunc func(n int) int

// CodeAllocator generates short join codes and checks them for uniqueness
// against the session store. The random source is injected so collision
// behavior is testable.
type CodeAllocator struct {
	length      int
	alphabet    string
	randIndex   RandFunc
	sessionRepo repository.SessionRepository
}

func NewCodeAllocator(length int, alphabet string, randIndex RandFunc, sessionRepo repository.SessionRepository) *CodeAllocator {
	if randIndex == nil {
		randIndex = secureRandIndex
	}
	return &CodeAllocator{
		length:      length,
		alphabet:    alphabet,
		randIndex:   randIndex,
		sessionRepo: sessionRepo,
	}
}

// Generate produces one candidate code without checking uniqueness.
func (a *CodeAllocator) Generate() string {
	var b strings.Builder
	b.Grow(a.length)
	for i := 0; i < a.length; i++ {
		b.WriteByte(a.alphabet[a.randIndex(len(a.alphabet))])
	}
	return b.String()
}

// GenerateUnique returns a code not currently held by any session, retrying
// up to maxCodeAttempts times on collision.
func (a *CodeAllocator) GenerateUnique(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := a.Generate()
		exists, err := a.sessionRepo.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

func secureRandIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(err)
	}
	return int(v.Int64())
}
