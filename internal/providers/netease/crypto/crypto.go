// Package crypto implements the three Netease request-signing envelopes:
// weAPI (double AES-CBC + raw RSA), eAPI (MD5-signed AES-ECB), and linux-api
// (plain AES-ECB). Keys, IV, and the RSA modulus are copied verbatim from the
// real service so requests are byte-for-byte compatible with it.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

var (
	iv        = []byte("0102030405060708")
	presetKey = []byte("0CoJUm6Qyw8W8jud")
	linuxKey  = []byte("rFgB&h#%2?^eDg:Q")
	eapiKey   = []byte("e82ckenh8dichen8")

	// rsaModulus and rsaExponent are Netease's published weAPI RSA public key.
	rsaModulus, _ = new(big.Int).SetString(
		"00e0b509f6259df8642dbc35662901477df22677ec152b5ff68ace615bb7b725152b3ab17a876aea8a5aa76d2e417629ec4ee341f56135fccf695280104e0312ecbda92557c93870114af6c9d05c4f7f0c3685b7a46bee255932575cce10b424d813cfe4875d3e82047b97ddef52741d546b8e289dc6935b3ece0462db0a22b8e7", 16)
	rsaExponent = big.NewInt(0x10001)
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomAlphanumericKey generates a random 16-byte alphanumeric AES key, the
// per-request key weAPI double-encrypts the payload with.
func randomAlphanumericKey() ([]byte, error) {
	key := make([]byte, 16)
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	for i, b := range buf {
		key[i] = alphanumeric[int(b)%len(alphanumeric)]
	}
	return key, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(data, padding...)
}

func aesCBCEncrypt(plaintext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, nil
}

func aesECBEncrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	for i := 0; i < len(padded); i += aes.BlockSize {
		block.Encrypt(ciphertext[i:i+aes.BlockSize], padded[i:i+aes.BlockSize])
	}
	return ciphertext, nil
}

// rsaEncryptRaw performs the exact padding weAPI expects: the message is
// left-padded with zero bytes to 128 bytes, then raw-RSA-encrypted (no OAEP,
// no PKCS1) against the published modulus/exponent.
func rsaEncryptRaw(message []byte) string {
	padded := make([]byte, 128)
	copy(padded[128-len(message):], message)

	m := new(big.Int).SetBytes(padded)
	c := new(big.Int).Exp(m, rsaExponent, rsaModulus)
	return hex.EncodeToString(c.Bytes())
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

// WeAPI encrypts payload under the weAPI envelope, returning the "params"
// and "encSecKey" form fields.
func WeAPI(payload string) (params, encSecKey string, err error) {
	randomKey, err := randomAlphanumericKey()
	if err != nil {
		return "", "", err
	}

	encryptedOnce, err := aesCBCEncrypt([]byte(payload), presetKey, iv)
	if err != nil {
		return "", "", err
	}
	encryptedOnceB64 := base64.StdEncoding.EncodeToString(encryptedOnce)

	encryptedTwice, err := aesCBCEncrypt([]byte(encryptedOnceB64), randomKey, iv)
	if err != nil {
		return "", "", err
	}
	encryptedTwiceB64 := base64.StdEncoding.EncodeToString(encryptedTwice)

	encSecKey = rsaEncryptRaw(reversed(randomKey))
	return encryptedTwiceB64, encSecKey, nil
}

// EAPI encrypts payload for apiURL under the eAPI envelope, returning the
// "params" form field.
func EAPI(apiURL, payload string) (string, error) {
	message := fmt.Sprintf("nobody%suse%smd5forencrypt", apiURL, payload)
	digest := md5.Sum([]byte(message))
	digestHex := hex.EncodeToString(digest[:])

	data := fmt.Sprintf("%s-36cd479b6b5-%s-36cd479b6b5-%s", apiURL, payload, digestHex)

	encrypted, err := aesECBEncrypt([]byte(data), eapiKey)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(encrypted)), nil
}

// LinuxAPI encrypts payload under the linux-api envelope, returning the
// "eparams" form field.
func LinuxAPI(payload string) (string, error) {
	encrypted, err := aesECBEncrypt([]byte(payload), linuxKey)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(encrypted)), nil
}
