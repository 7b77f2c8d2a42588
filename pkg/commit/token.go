package commit

import (
	"net/http"
	"net/url"
)

// DefaultCookieName is the cookie the backend stores its CSRF token in.
const DefaultCookieName = "csrftoken"

// DefaultHeader is the request header the backend reads the token from.
const DefaultHeader = "X-CSRFToken"

// DefaultFormField is the form field carrying the token in form posts.
const DefaultFormField = "csrfmiddlewaretoken"

// TokenSource yields the CSRF token to send with a request to endpoint.
// An empty string means no token is available.
type TokenSource interface {
	Token(endpoint *url.URL) string
}

// CookieToken reads the token from a cookie jar, the way a page script
// reads document.cookie.
type CookieToken struct {
	Jar  http.CookieJar
	Name string
}

// Token implements TokenSource.
func (c CookieToken) Token(endpoint *url.URL) string {
	if c.Jar == nil || endpoint == nil {
		return ""
	}
	name := c.Name
	if name == "" {
		name = DefaultCookieName
	}
	for _, cookie := range c.Jar.Cookies(endpoint) {
		if cookie.Name == name {
			if v, err := url.QueryUnescape(cookie.Value); err == nil {
				return v
			}
			return cookie.Value
		}
	}
	return ""
}

// FieldToken is a token embedded in the page, e.g. a hidden form field.
type FieldToken string

// Token implements TokenSource.
func (f FieldToken) Token(*url.URL) string {
	return string(f)
}

// FirstToken returns the first non-empty token of its sources. Form posts
// prefer the embedded field and fall back to the cookie.
type FirstToken []TokenSource

// Token implements TokenSource.
func (f FirstToken) Token(endpoint *url.URL) string {
	for _, src := range f {
		if src == nil {
			continue
		}
		if tok := src.Token(endpoint); tok != "" {
			return tok
		}
	}
	return ""
}
