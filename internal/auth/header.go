package auth

import "strings"

// TokenFromHeader извлекает bearer-токен из значения заголовка Authorization.
func TokenFromHeader(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", unauthorized(CodeHeaderMissing, "Authorization header is expected.", nil)
	}
	parts := strings.Fields(header)
	if !strings.EqualFold(parts[0], "bearer") {
		return "", unauthorized(CodeInvalidHeader, "Authorization header must start with \"Bearer\".", nil)
	}
	if len(parts) == 1 {
		return "", unauthorized(CodeInvalidHeader, "Token not found.", nil)
	}
	if len(parts) > 2 {
		return "", unauthorized(CodeInvalidHeader, "Authorization header must be bearer token.", nil)
	}
	return parts[1], nil
}
