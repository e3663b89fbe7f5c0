package http

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ValidationErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type UserResponse struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Confirmed bool   `json:"confirmed"`
}

type CheckPasswordResponse struct {
	Message string `json:"message"`
	Valid   bool   `json:"valid"`
}

type SessionVerifyRequest struct {
	Token string `json:"token"`
}

type SessionVerifyResponse struct {
	Valid  bool   `json:"valid"`
	UserID uint64 `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}
