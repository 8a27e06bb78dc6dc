package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword: true, если пароль совпадает с bcrypt-хэшем.
func CheckPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ErrPasswordTooLong: bcrypt не принимает больше 72 байт.
var ErrPasswordTooLong = errors.New("password is longer than 72 bytes")

func ValidatePasswordLength(password string) error {
	if len(password) > 72 {
		return ErrPasswordTooLong
	}
	return nil
}
