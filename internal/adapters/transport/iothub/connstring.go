package iothub

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ConnectionString is a parsed device connection string of the form
// HostName=...;DeviceId=...;SharedAccessKey=...
type ConnectionString struct {
	HostName        string
	DeviceID        string
	SharedAccessKey string
	GatewayHostName string
}

var ErrConnectionString = errors.New("iothub: invalid connection string")

func ParseConnectionString(s string) (ConnectionString, error) {
	var cs ConnectionString
	for _, part := range strings.Split(strings.TrimSpace(s), ";") {
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return ConnectionString{}, fmt.Errorf("%w: segment %q has no value", ErrConnectionString, key)
		}
		switch key {
		case "HostName":
			cs.HostName = value
		case "DeviceId":
			cs.DeviceID = value
		case "SharedAccessKey":
			cs.SharedAccessKey = value
		case "GatewayHostName":
			cs.GatewayHostName = value
		}
	}
	switch {
	case cs.HostName == "":
		return ConnectionString{}, fmt.Errorf("%w: HostName missing", ErrConnectionString)
	case cs.DeviceID == "":
		return ConnectionString{}, fmt.Errorf("%w: DeviceId missing", ErrConnectionString)
	case cs.SharedAccessKey == "":
		return ConnectionString{}, fmt.Errorf("%w: SharedAccessKey missing", ErrConnectionString)
	}
	if _, err := base64.StdEncoding.DecodeString(cs.SharedAccessKey); err != nil {
		return ConnectionString{}, fmt.Errorf("%w: SharedAccessKey is not base64", ErrConnectionString)
	}
	return cs, nil
}

// Endpoint is the host the device connects to.
func (cs ConnectionString) Endpoint() string {
	if cs.GatewayHostName != "" {
		return cs.GatewayHostName
	}
	return cs.HostName
}

func (cs ConnectionString) ResourceURI() string {
	return cs.HostName + "/devices/" + cs.DeviceID
}

// SASToken signs resourceURI with the base64 key and returns a
// SharedAccessSignature valid until expiry.
func SASToken(resourceURI, key string, expiry time.Time) (string, error) {
	rawKey, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("decode shared access key: %w", err)
	}
	encodedURI := url.QueryEscape(resourceURI)
	se := strconv.FormatInt(expiry.Unix(), 10)

	mac := hmac.New(sha256.New, rawKey)
	mac.Write([]byte(encodedURI + "\n" + se))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return "SharedAccessSignature sr=" + encodedURI +
		"&sig=" + url.QueryEscape(sig) +
		"&se=" + se, nil
}
