package common

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"strings"

	"golang.org/x/crypto/argon2"

	"ruangluka/pkg/logger"
)

const saltLen = 8

type Msg struct {
	Message string `json:"message"`
}

func WriteMsg(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	WriteRespJSON(w, Msg{msg})
}

var letterRunes = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

func RandStringRunes(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letterRunes[rand.Intn(len(letterRunes))]
	}
	return string(b)
}

// HashPass returns salt followed by the argon2id key, salt must be 8 bytes long.
func HashPass(plainPassword, salt string) []byte {
	hashedPass := argon2.IDKey([]byte(plainPassword), []byte(salt), 1, 64*1024, 4, 32)
	res := []byte(salt)
	return append(res, hashedPass...)
}

func NewPassHash(plainPassword string) []byte {
	return HashPass(plainPassword, RandStringRunes(saltLen))
}

func CheckPass(plainPassword string, stored []byte) bool {
	if len(stored) <= saltLen {
		return false
	}
	salt := string(stored[:saltLen])
	return subtle.ConstantTimeCompare(HashPass(plainPassword, salt), stored) == 1
}

func ParseReqBody(body io.Reader, ptr interface{}) error {
	return json.NewDecoder(body).Decode(ptr)
}

func WriteRespJSON(w http.ResponseWriter, data interface{}) {
	resp, err := json.Marshal(data)
	if err != nil {
		logger.Log(context.TODO()).Errorf("common: JSON marshaling failed: %v", err)
		http.Error(w, `{"message":"response failed"}`, http.StatusInternalServerError)
		return
	}

	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	if _, err = w.Write(resp); err != nil {
		logger.Log(context.TODO()).Errorf("common: failed writing response: %v", err)
	}
}

// Blank reports whether s has no visible characters.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
