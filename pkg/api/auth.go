package api

// RegisterRequest представляет запрос на регистрацию нового устройства
type RegisterRequest struct {
	DeviceID      string `json:"device_id"`      // идентификатор устройства
	Role          string `json:"role"`           // device|operator
	EnrollmentKey string `json:"enrollment_key"` // ключ регистрации для роли
	Secret        string `json:"secret"`         // секрет устройства
}

// RegisterResponse представляет ответ на успешную регистрацию
type RegisterResponse struct {
	DeviceID string `json:"device_id"`
	Role     string `json:"role"`
}

// LoginRequest представляет запрос на аутентификацию устройства
type LoginRequest struct {
	DeviceID string `json:"device_id"`
	Secret   string `json:"secret"`
}

// TokenResponse представляет ответ с токеном доступа
type TokenResponse struct {
	AccessToken string `json:"access_token"` // JWT access token
	Role        string `json:"role"`         // роль устройства
	ExpiresIn   int64  `json:"expires_in"`   // время жизни access token в секундах
}

// HealthResponse ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
