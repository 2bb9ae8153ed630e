package twiliosig

import (
	"crypto/hmac"
	"encoding/base64"
	"fmt"
	"net/url"
)

func Validate(webhookURL string, params url.Values, signature string, authToken string) error {
	if signature == "" {
		return fmt.Errorf("missing signature")
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("can't decode signature: %v", err)
	}
	want, err := base64.StdEncoding.DecodeString(Encode(webhookURL, params, authToken))
	if err != nil {
		return fmt.Errorf("can't decode expected signature: %v", err)
	}
	if !hmac.Equal(want, got) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}
