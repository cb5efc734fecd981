package config

import "strings"

type Cors struct {
	FrontendURL string `env:"FRONTEND_URL,required,notEmpty"`
}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

// GetFrontendURL returns the storefront origin without a trailing slash.
func (c Cors) GetFrontendURL() string {
	return strings.TrimRight(c.FrontendURL, "/")
}

func (c Cors) GetAllowedOrigins() AllowedOrigins {
	return AllowedOrigins{c.GetFrontendURL(): nullValue{}}
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST, OPTIONS"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type"
}
