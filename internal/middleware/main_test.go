package middleware

import (
	"errors"
	"os"
	"testing"
)

var errDB = errors.New("database error")

func TestMain(m *testing.M) {
	os.Setenv("TVK_JWT_SECRET", "test-jwt-secret-that-is-32-chars!!")
	os.Exit(m.Run())
}
