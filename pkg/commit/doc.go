// Package commit sends optimistic actions to the league backend.
//
// An HTTP committer issues exactly one POST per action against an endpoint
// supplied by the page, with the CSRF token in the X-CSRFToken header. The
// outcome is binary:
//
//   - 2xx: accepted
//   - 3xx: rejected, the session expired and the Location is reported
//   - other status: rejected, with a message extracted from the body
//   - transport failure: TransportError
//   - empty endpoint: ConfigError, nothing is sent
//
// Bodies are JSON by default; WithForm switches to a form-encoded post that
// also carries the token in the csrfmiddlewaretoken field.
package commit
