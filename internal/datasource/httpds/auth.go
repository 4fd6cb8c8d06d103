package httpds

import "net/http"

// Auth decorates a request with credentials.
type Auth interface {
	Apply(req *http.Request)
}

// BearerAuth sends "Authorization: Bearer <Token>".
type BearerAuth struct{ Token string }

func (a BearerAuth) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.Token)
}

// BasicAuth sends HTTP basic credentials.
type BasicAuth struct {
	Username string
	Password string
}

func (a BasicAuth) Apply(req *http.Request) {
	req.SetBasicAuth(a.Username, a.Password)
}
