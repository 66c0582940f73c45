package request

// ConnectIntegration carries the secret for a direct api-key or webhook
// connect. OAuth2 providers use the authorize-url flow instead and reject
// this body.
type ConnectIntegration struct {
	Secret string `json:"secret" validate:"required"`
}
