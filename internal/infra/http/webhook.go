package http

import (
	"crypto/hmac"
	"fmt"
	"net/http"
)

// SecretTokenHeader - заголовок, которым Telegram подписывает запросы вебхука.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookSecretMiddleware отклоняет запросы без правильного secret_token.
// Пустой secret отключает проверку.
func WebhookSecretMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret != "" && !hmac.Equal([]byte(r.Header.Get(SecretTokenHeader)), []byte(secret)) {
				WriteError(w, http.StatusUnauthorized, fmt.Errorf("подпись недействительна"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError отправляет JSON с ошибкой.
func WriteError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(fmt.Sprintf(`{"error":%q}`, err.Error())))
}
