// Package otp issues and verifies the one-time codes that gate phone-based
// login. Codes are bcrypt-hashed at rest in Redis with a 5-minute TTL, the
// same hash-then-compare idiom used for account passwords elsewhere.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	sharedredis "github.com/ledgerwire/shared/redis"
	"github.com/ledgerwire/shared/utils"
)

const ttl = 5 * time.Minute

func key(phone string) string { return "otp:" + phone }

// Sender delivers a one-time code to a phone number. Production
// deployments swap in an SMS provider; this repo ships only a logging
// stub for the external notification concern it doesn't own.
type Sender interface {
	Send(ctx context.Context, phoneNumber, code string) error
}

type LogSender struct{}

func (LogSender) Send(ctx context.Context, phoneNumber, code string) error {
	fmt.Printf("[otp] code for %s: %s\n", phoneNumber, code)
	return nil
}

type Service struct {
	redis  *sharedredis.Client
	sender Sender
}

func New(redis *sharedredis.Client, sender Sender) *Service {
	return &Service{redis: redis, sender: sender}
}

// Request generates a fresh 6-digit code, stores its bcrypt hash with a
// 5-minute TTL, and hands it to the configured Sender.
func (s *Service) Request(ctx context.Context, phoneNumber string) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("failed to generate otp: %w", err)
	}
	hash, err := utils.HashPassword(code)
	if err != nil {
		return fmt.Errorf("failed to hash otp: %w", err)
	}
	if err := s.redis.Set(ctx, key(phoneNumber), hash, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}
	return s.sender.Send(ctx, phoneNumber, code)
}

// Verify compares code against the stored hash and deletes it on success
// so a code can never be replayed.
func (s *Service) Verify(ctx context.Context, phoneNumber, code string) (bool, error) {
	hash, err := s.redis.Get(ctx, key(phoneNumber)).Result()
	if err != nil {
		return false, nil
	}
	if !utils.CheckPassword(code, hash) {
		return false, nil
	}
	s.redis.Del(ctx, key(phoneNumber))
	return true, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
