// Package twiliosig computes and checks the X-Twilio-Signature header Twilio
// attaches to webhook requests.
package twiliosig

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

const HEADER = "X-Twilio-Signature"

// The signed payload is the full webhook URL followed by every POST parameter,
// name then value, sorted by name.
func Encode(webhookURL string, params url.Values, authToken string) string {
	var payload strings.Builder
	payload.WriteString(webhookURL)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values := append([]string(nil), params[k]...)
		sort.Strings(values)
		for _, v := range values {
			payload.WriteString(k)
			payload.WriteString(v)
		}
	}

	h := hmac.New(sha1.New, []byte(authToken))
	h.Write([]byte(payload.String()))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
