package credentials

import (
	"crypto/rand"
	"math/big"
)

// FamilyCodePrefix starts every generated family code
const FamilyCodePrefix = "FAM"

// familyCodeChars omits 0/O and 1/I so codes can be read aloud
const familyCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	familyCodeLength = 6
	otpMin           = 100000
	otpSpan          = 900000
)

// GenerateFamilyCode generates a random code in the format "FAM" + 6 characters
func GenerateFamilyCode() (string, error) {
	code := make([]byte, familyCodeLength)

	for i := 0; i < familyCodeLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(familyCodeChars))))
		if err != nil {
			return "", err
		}
		code[i] = familyCodeChars[num.Int64()]
	}

	return FamilyCodePrefix + string(code), nil
}

// GenerateOTP generates a 6-digit one-time password without a leading zero
func GenerateOTP() (string, error) {
	num, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", err
	}
	return big.NewInt(0).Add(num, big.NewInt(otpMin)).String(), nil
}
