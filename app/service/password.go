package service

import (
	"fmt"

	"github.com/vibast-solutions/ms-go-uptask/config"

	"golang.org/x/crypto/bcrypt"
)

func hashPassword(cfg config.PasswordConfig, password string) (string, error) {
	if err := cfg.Policy.Validate(password); err != nil {
		return "", fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func passwordMatches(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
