package portal

import (
	"fmt"

	"github.com/muurk/captiveconfig/internal/wifi"
)

const (
	// MinPassphraseLength is the WPA-PSK lower bound on ASCII passphrases
	MinPassphraseLength = 8
	// MaxPassphraseLength is the WPA-PSK upper bound on ASCII passphrases
	MaxPassphraseLength = 63
	// rawPSKLength is the length of a PSK given as hex digits
	rawPSKLength = 64
)

// Credentials are the network name and passphrase captured by the portal.
// An empty Passphrase means an open network.
type Credentials struct {
	SSID       string `json:"ssid" yaml:"ssid"`
	Passphrase string `json:"passphrase" yaml:"passphrase"`
}

// IsOpen reports whether the credentials carry no passphrase.
func (c Credentials) IsOpen() bool {
	return c.Passphrase == ""
}

// ValidateSSID checks an SSID.
// SSIDs must be non-empty and <= 32 bytes (802.11 limit).
func ValidateSSID(ssid string) error {
	if ssid == "" {
		return NewValidationError("network name cannot be empty")
	}
	if len(ssid) > wifi.MaxSSIDLength {
		return NewValidationError(fmt.Sprintf("network name too long (max %d bytes): %d bytes", wifi.MaxSSIDLength, len(ssid)))
	}
	return nil
}

// ValidatePassphrase checks a passphrase.
// Empty (open network), 8-63 printable ASCII characters, or a 64 digit hex PSK.
func ValidatePassphrase(passphrase string) error {
	if passphrase == "" {
		return nil
	}
	if len(passphrase) == rawPSKLength {
		if !isHex(passphrase) {
			return NewValidationError("a 64 character passphrase must be a hex PSK")
		}
		return nil
	}
	if len(passphrase) < MinPassphraseLength {
		return NewValidationError(fmt.Sprintf("passphrase too short (min %d chars): %d chars", MinPassphraseLength, len(passphrase)))
	}
	if len(passphrase) > MaxPassphraseLength {
		return NewValidationError(fmt.Sprintf("passphrase too long (max %d chars): %d chars", MaxPassphraseLength, len(passphrase)))
	}
	for i := 0; i < len(passphrase); i++ {
		if passphrase[i] < 32 || passphrase[i] > 126 {
			return NewValidationError("passphrase may only contain printable ASCII characters")
		}
	}
	return nil
}

// ValidateCredentials checks both fields. When the SSID is in the catalog
// and the network is secured, an empty passphrase is rejected.
func ValidateCredentials(creds Credentials, catalog *Catalog) error {
	if err := ValidateSSID(creds.SSID); err != nil {
		return err
	}
	if err := ValidatePassphrase(creds.Passphrase); err != nil {
		return err
	}
	if catalog != nil && creds.Passphrase == "" {
		if ap, ok := catalog.Lookup(creds.SSID); ok && !ap.Security.IsOpen() && ap.Security != wifi.SecurityUnknown {
			return NewValidationError(fmt.Sprintf("%s is a %s network and needs a passphrase", creds.SSID, ap.Security))
		}
	}
	return nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
