package security

import (
	"strings"

	"github.com/pquerna/otp/totp"
)

// totpIssuer is shown in authenticator apps next to the account name.
const totpIssuer = "Hotspot Portal"

// GenerateTOTPSecret creates a new TOTP secret and provisioning URL for the
// account.
func GenerateTOTPSecret(accountName string) (secret, url string, err error) {
	key, errGenerate := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: accountName,
	})
	if errGenerate != nil {
		return "", "", errGenerate
	}
	return key.Secret(), key.URL(), nil
}

// ValidateTOTP reports whether the code matches the secret for the current
// time step.
func ValidateTOTP(secret, code string) bool {
	secret = strings.TrimSpace(secret)
	code = strings.TrimSpace(code)
	if secret == "" || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}
