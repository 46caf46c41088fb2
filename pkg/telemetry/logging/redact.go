package logging

import "regexp"

// credentialParam matches query parameters that carry account credentials
// in game client requests.
var credentialParam = regexp.MustCompile(`(?i)\b(steam_auth|steam_id|user_id|token|key)=([^&\s]+)`)

// RedactPath masks credential values in a request path so it can be
// logged safely. The parameter names are kept.
func RedactPath(path string) string {
	return credentialParam.ReplaceAllString(path, "$1=***")
}
